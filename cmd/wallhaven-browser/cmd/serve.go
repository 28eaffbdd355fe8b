package cmd

import (
	"go-wallhaven-browser/internal/proxy"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API and image proxy",
	Long: `Serves /api/wallhaven, /proxy/image and /proxy/thumb, forwarding to
wallhaven.cc, w.wallhaven.cc and th.wallhaven.cc. The effective API key is
added to API requests that do not carry one. Stops on Ctrl+C.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.String("listen", "", "Listen address (default from config, 127.0.0.1:5174)")
	f.StringSlice("allow-origin", nil, "Origins allowed by CORS (repeatable)")
	f.String("fallback-host", "", "Secondary image host used when the primary keeps failing")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp(globalConfig)
	if err != nil {
		return err
	}
	key := a.apiKey()
	// bitcask keeps a lock while open; the proxy only needs the key.
	a.Close()

	srv, err := proxy.New(globalConfig.Proxy, proxy.DefaultTargets(), key)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}
