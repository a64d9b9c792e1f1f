package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable/relay"
	"github.com/hupe1980/roundtable/server"
)

func newServeCommand(envFile *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve starts the HTTP API with SSE and WebSocket streaming. Sessions are
kept in memory unless ROUNDTABLE_DB_PATH points to a SQLite database; run
events are also published to NATS when ROUNDTABLE_NATS_URL is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := newApp(*envFile)
			if err != nil {
				return err
			}
			defer func() { err = a.joinClose(err) }()

			if addr == "" {
				addr = a.settings.ListenAddr
			}

			var publisher relay.Sink
			if a.settings.NATSURL != "" {
				sink, err := relay.ConnectNATS(a.settings.NATSURL, a.settings.NATSSubject)
				if err != nil {
					return err
				}
				defer func() { _ = sink.Close() }()
				publisher = sink
			}

			srv := server.New(a.rt, func(o *server.Options) {
				o.HeartbeatInterval = a.settings.HeartbeatInterval
				o.Publisher = publisher
				o.Logger = a.logger.WithComponent("server")
			})

			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default ROUNDTABLE_LISTEN_ADDR)")

	return cmd
}
