package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/cache"
	"github.com/quire-reader/quire/internal/compress"
	"github.com/quire-reader/quire/internal/config"
	"github.com/quire-reader/quire/internal/reader"
	"github.com/quire-reader/quire/internal/resource"
	"github.com/quire-reader/quire/internal/server"
	"github.com/quire-reader/quire/internal/store"
)

func main() {
	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "4001"
	}

	cnf := config.LoadConfig()

	st := store.NewGormStore(config.GetDb(cnf))
	if err := st.Migrate(); err != nil {
		logrus.Fatalf("error migrating metadata store: %v", err)
	}

	resources, err := resource.NewStore(filepath.Join(cnf.DataDir, "pages"))
	if err != nil {
		logrus.Fatalf("error creating page scratch store: %v", err)
	}

	byteCache, err := cache.NewDiskCache(cache.DiskCacheConfig{
		Dir:   filepath.Join(cnf.DataDir, "sources"),
		Limit: cnf.CacheLimit,
		Codec: compress.CodecZstd,
	}, st)
	if err != nil {
		logrus.Fatalf("error creating source cache: %v", err)
	}

	server.NewServer(httpPort, reader.NewReader(resources, st, byteCache)).Start()
}
