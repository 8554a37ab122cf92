package main

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/internal/notifier"
	"github.com/procureflow/backend/internal/router"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load a .env file if one exists, real environment variables win
	_ = godotenv.Load()

	// gin uses debug as the default mode, we use release for
	// security reasons
	ginMode, ok := os.LookupEnv("GIN_MODE")
	if !ok {
		gin.SetMode("release")
	} else {
		gin.SetMode(ginMode)
	}

	// Log format can be explicitly set.
	// If it is not set, it defaults to human readable for development
	// and JSON for release
	logFormat, ok := os.LookupEnv("LOG_FORMAT")
	output := io.Writer(os.Stdout)
	if (!ok && gin.IsDebugging()) || (ok && logFormat == "human") {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()

	// Create data directory
	dataDir := filepath.Join(".", "data")
	err := os.MkdirAll(dataDir, os.ModePerm)
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// Connect to the database and migrate the schema
	err = models.Connect(filepath.Join(dataDir, "gorm.db"))
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	err = notifier.Connect()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	defer notifier.Close()

	r, teardown, err := router.Router()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	defer teardown()

	stopSweeper := startStaleSweeper()
	defer stopSweeper()

	if err := r.Run(); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

// startStaleSweeper periodically releases reservations that have been
// sitting without a disbursement for too long. The age threshold comes
// from STALE_SWEEP_DAYS (default 90), the check interval from
// STALE_SWEEP_INTERVAL (default 24h). Setting STALE_SWEEP_DAYS to 0
// disables the sweep.
func startStaleSweeper() func() {
	days := 90
	if v, ok := os.LookupEnv("STALE_SWEEP_DAYS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			log.Fatal().Msgf("STALE_SWEEP_DAYS is not a number: %s", v)
		}
		days = parsed
	}

	if days == 0 {
		log.Info().Msg("stale reservation sweep disabled")
		return func() {}
	}

	interval := 24 * time.Hour
	if v, ok := os.LookupEnv("STALE_SWEEP_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			log.Fatal().Msgf("STALE_SWEEP_INTERVAL is not a duration: %s", v)
		}
		interval = parsed
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				released, err := models.SweepStaleReservations(days)
				if err != nil {
					log.Error().Err(err).Msg("stale reservation sweep failed")
					continue
				}

				if released > 0 {
					log.Info().Int("released", released).Msg("released stale reservations")
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
