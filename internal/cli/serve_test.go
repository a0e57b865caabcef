package cli

import (
	"testing"

	"github.com/valter-silva-au/mdboard/pkg/models"
)

func TestServeAddr(t *testing.T) {
	origConfig := Config
	t.Cleanup(func() { Config = origConfig })

	resetFlags(serveCmd)
	Config = nil
	if host, port := serveAddr(serveCmd); host != "127.0.0.1" || port != 3050 {
		t.Errorf("defaults = %s:%d, want 127.0.0.1:3050", host, port)
	}

	Config = &models.GlobalConfig{Host: "0.0.0.0", Port: 8080}
	if host, port := serveAddr(serveCmd); host != "0.0.0.0" || port != 8080 {
		t.Errorf("config = %s:%d, want 0.0.0.0:8080", host, port)
	}

	if err := serveCmd.Flags().Set("port", "9000"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resetFlags(serveCmd) })
	if host, port := serveAddr(serveCmd); host != "0.0.0.0" || port != 9000 {
		t.Errorf("flag override = %s:%d, want 0.0.0.0:9000", host, port)
	}
}

func TestServeCmd_RequiresHub(t *testing.T) {
	newCLIFixture(t)
	origHub := Hub
	Hub = nil
	t.Cleanup(func() { Hub = origHub })

	if _, err := run(t, "serve"); err == nil {
		t.Fatal("expected error without a notification hub")
	}
}
