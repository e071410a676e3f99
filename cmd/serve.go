package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoreguard/internal/server"
)

var (
	srvAddr        string
	srvMaxUploadMB int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if cmd.Flags().Changed("addr") {
			c.ServerAddr = srvAddr
		}
		if cmd.Flags().Changed("max-upload-mb") {
			c.MaxUploadMB = srvMaxUploadMB
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		successf(cmd.OutOrStdout(), "Listening on %s", c.ServerAddr)
		return server.New(&c, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", ":8080", "listen address (default from config)")
	serveCmd.Flags().IntVar(&srvMaxUploadMB, "max-upload-mb", 10, "upload size limit in MB (default from config)")
}
