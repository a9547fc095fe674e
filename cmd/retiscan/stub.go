package main

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/retiscan/retiscan/internal/database"
	"github.com/retiscan/retiscan/internal/stubserver"
)

var stubMemory bool

var stubCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Run the development stand-in for the screening backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var store database.Store
		if stubMemory {
			store = database.NewMemoryStore()
			log.Printf("Using in-memory store")
		} else {
			store, err = database.NewSQLiteStore(cfg.Stub.DBPath)
			if err != nil {
				return err
			}
			log.Printf("Using SQLite store at %s", cfg.Stub.DBPath)
		}
		defer store.Close()

		var opts []stubserver.Option
		if cfg.API.Token != "" {
			opts = append(opts, stubserver.WithToken(cfg.API.Token))
		}
		server := stubserver.New(store, opts...)

		log.Printf("Stub screening backend listening on %s", cfg.Stub.Addr)
		return http.ListenAndServe(cfg.Stub.Addr, server.Router())
	},
}

func init() {
	stubCmd.Flags().BoolVar(&stubMemory, "memory", false, "use an in-memory store instead of SQLite")
}
