package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quire-reader/quire/internal/cache"
	"github.com/quire-reader/quire/internal/compress"
	"github.com/quire-reader/quire/internal/config"
	"github.com/quire-reader/quire/internal/jobs"
	"github.com/quire-reader/quire/internal/reader"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/server"
	"github.com/quire-reader/quire/internal/store"
)

func serveCmd() *cobra.Command {
	var httpPort string

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the reader api for a browser frontend",
		Run: func(cmd *cobra.Command, args []string) {
			cnf := config.LoadConfig()
			if httpPort != "" {
				cnf.HTTPPort = httpPort
			}

			r, diskCache, cleanup := buildReader(cnf)
			defer cleanup()

			if diskCache != nil {
				runner := jobs.NewRunner([]jobs.Job{
					jobs.NewCacheTrimJob("@every 10m", diskCache),
				})
				runner.Start()
				defer runner.Stop()
			}

			server.NewServer(cnf.HTTPPort, r).Start()
		},
	}

	command.Flags().StringVarP(&httpPort, "port", "p", "", "http port for the reader api")

	return command
}

// buildReader wires the engine from configuration: metadata store,
// byte cache (disk, or redis when configured), resource store, reader.
// The returned disk cache is nil when redis is in use.
func buildReader(cnf config.Config) (*reader.Reader, *cache.DiskCache, func()) {
	db := config.GetDb(cnf)
	st := store.NewGormStore(db)
	if err := st.Migrate(); err != nil {
		logrus.Fatalf("error migrating metadata store: %v", err)
	}

	resources, err := resource.NewStore(filepath.Join(cnf.DataDir, "pages"))
	if err != nil {
		logrus.Fatalf("error creating page scratch store: %v", err)
	}

	var byteCache cache.ByteCache
	var diskCache *cache.DiskCache
	if cnf.RedisAddr != "" {
		byteCache, err = cache.NewRedisByteCache(cnf.RedisAddr, compress.CodecZstd, cnf.CacheLimit)
		if err != nil {
			logrus.Fatalf("error connecting to redis cache: %v", err)
		}
	} else {
		diskCache, err = cache.NewDiskCache(cache.DiskCacheConfig{
			Dir:   filepath.Join(cnf.DataDir, "sources"),
			Limit: cnf.CacheLimit,
			Codec: compress.CodecZstd,
		}, st)
		if err != nil {
			logrus.Fatalf("error creating source cache: %v", err)
		}
		byteCache = diskCache
	}

	r := reader.NewReader(resources, st, byteCache)

	return r, diskCache, func() {
		if err := resources.Close(); err != nil {
			logrus.Errorf("error removing page scratch store: %v", err)
		}
	}
}
