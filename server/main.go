// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/croessner/secenh/server/attrstore"
	"github.com/croessner/secenh/server/authgate"
	"github.com/croessner/secenh/server/backend"
	"github.com/croessner/secenh/server/banhammer"
	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/limiter"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/loginlog"
	"github.com/croessner/secenh/server/notify"
	"github.com/croessner/secenh/server/rediscli"
	"github.com/croessner/secenh/server/watcher"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	configFile := pflag.StringP("config", "c", "", "path to the configuration file")
	showVersion := pflag.BoolP("version", "v", false, "print the version and exit")

	pflag.Parse()

	if *showVersion {
		fmt.Println("secenh", version)

		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		stdlog.Fatalln("Unable to load configuration:", err)
	}

	log.SetupLogging(
		cfg.GetServer().GetLog().GetLevel(),
		cfg.GetServer().GetLog().IsJSON(),
		cfg.GetServer().GetLog().IsColor(),
		cfg.GetServer().GetInstanceName(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	defer stop()

	components, cleanup, err := setupComponents(cfg)
	if err != nil {
		level.Error(log.Logger).Log(
			definitions.LogKeyMsg, "Unable to initialize components",
			definitions.LogKeyError, err,
		)
		os.Exit(1)
	}

	defer cleanup()

	if err := runServer(ctx, cfg, setupRouter(cfg, components)); err != nil {
		level.Error(log.Logger).Log(
			definitions.LogKeyMsg, "Server terminated",
			definitions.LogKeyError, err,
		)
		os.Exit(1)
	}

	level.Info(log.Logger).Log(definitions.LogKeyMsg, "Shutdown complete")
}

// setupComponents wires the storage, pipeline and notification components.
// Without a configured Redis master, everything falls back to in-process
// storage; state then ends with the process.
func setupComponents(cfg *config.FileSettings) (*serverComponents, func(), error) {
	redisCfg := cfg.GetServer().GetRedis()
	cleanup := func() {}

	var (
		sharedCache cache.Cache
		store       attrstore.Store
		journal     loginlog.Journal
	)

	if redisCfg.Master.Address != "" {
		redisClient := rediscli.NewClient(redisCfg)
		cleanup = redisClient.Close

		sharedCache = cache.NewRedisCache(redisClient, redisCfg.GetPrefix())
		store = attrstore.NewRedisStore(redisClient, redisCfg.GetPrefix())
		journal = loginlog.NewRedisJournal(redisClient, redisCfg.GetPrefix(), 0)
	} else {
		level.Warn(log.Logger).Log(
			definitions.LogKeyMsg, "No Redis master configured, falling back to in-process storage",
		)

		sharedCache = cache.NewMemoryCache()
		store = attrstore.NewMemoryStore()
		journal = loginlog.NewMemoryJournal(0)
	}

	var creds backend.CredentialStore

	if htpasswdFile := cfg.GetAuth().GetHtpasswdFile(); htpasswdFile != "" {
		htpasswdStore, err := backend.NewHtpasswdStore(htpasswdFile)
		if err != nil {
			return nil, cleanup, err
		}

		creds = htpasswdStore
	}

	var sender notify.Sender

	if cfg.GetSMTP().GetServer() != "" {
		sender = notify.NewSMTPSender(cfg.GetSMTP())
	}

	geo := ipapi.NewClient(cfg.GetIPAPI(), sharedCache)

	components := &serverComponents{
		ban:     banhammer.New(cfg.GetBanhammer(), sharedCache),
		gate:    authgate.New(cfg.GetAuth()),
		limiter: limiter.New(cfg.GetLimiter(), sharedCache, geo),
		creds:   creds,
		geo:     geo,
		watcher: watcher.New(cfg.GetWatcher(), cfg.GetServer().GetSiteURL(), store, geo, sender),
		journal: journal,
	}

	return components, cleanup, nil
}
