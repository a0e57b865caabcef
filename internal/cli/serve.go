package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mdboard/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board over HTTP",
	Long: `Start the HTTP API for the current project's board.

The server migrates a legacy board on startup, watches the task tree for
changes made by any editor, and pushes change notifications to clients over
server-sent events (/api/tasks/events) and websockets (/api/tasks/ws).
Stop it with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(); err != nil {
			return err
		}
		if err := requireProjects(); err != nil {
			return err
		}
		if Hub == nil {
			return errNotInitialized("notification hub")
		}

		host, port := serveAddr(cmd)
		addr := net.JoinHostPort(host, strconv.Itoa(port))

		root, err := Projects.TasksDir()
		if err != nil {
			return fmt.Errorf("resolving tasks directory: %w", err)
		}
		if migrated, err := Board.Migrate(); err != nil {
			return err
		} else if migrated {
			fmt.Printf("Migrated legacy board at %s\n", root)
		}

		if Watcher != nil {
			if err := Watcher.Restart(root); err != nil {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			defer func() { _ = Watcher.Close() }()
		}

		if Config == nil || Config.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := web.NewServer(web.Deps{
			Board:    Board,
			Projects: Projects,
			Hub:      Hub,
			Activity: ActivityCalc,
			Logger:   logger(),
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Serving %s on http://%s\n", root, addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

// serveAddr resolves the listen address: flags win over configuration.
func serveAddr(cmd *cobra.Command) (string, int) {
	host, port := "127.0.0.1", 3050
	if Config != nil {
		host, port = Config.Host, Config.Port
	}
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	return host, port
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to listen on (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
