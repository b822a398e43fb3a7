package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lanikai/alohacapture"
	"github.com/lanikai/alohacapture/internal/audio"
	"github.com/lanikai/alohacapture/internal/camera"
	"github.com/lanikai/alohacapture/internal/logging"
	"github.com/lanikai/alohacapture/internal/media"
	"github.com/lanikai/alohacapture/internal/metrics"
	_ "github.com/lanikai/alohacapture/internal/v4l2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Populated via -ldflags="-X main.GitRevisionId=...".
var GitRevisionId string

var log = logging.DefaultLogger.WithTag("main")

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	if flagLogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   flagLogFile,
			MaxSize:    10, // MiB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		defer lj.Close()
		logging.SetColor(false)
		logging.DefaultLogger.SetDestination(lj)
	}

	sc, err := sessionConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("alohacaptured: %v", err))
		os.Exit(2)
	}

	if err := run(sc); err != nil {
		log.Fatalf("%v", err)
	}
}

// sessionConfig loads the config file, if any, and applies flag overrides.
func sessionConfig() (alohacapture.SessionConfig, error) {
	sc := alohacapture.DefaultSessionConfig()
	if flagConfig != "" {
		f, err := os.Open(flagConfig)
		if err != nil {
			return sc, err
		}
		defer f.Close()
		if sc, err = alohacapture.LoadSessionConfig(f); err != nil {
			return sc, errors.Wrap(err, flagConfig)
		}
	}

	if flag.CommandLine.Changed("facing") {
		facing, err := camera.ParseFacing(flagFacing)
		if err != nil {
			return sc, err
		}
		sc.Facing = facing
	}
	if flag.CommandLine.Changed("fps") {
		sc.FrameRate = flagFrameRate
	}
	if flag.CommandLine.Changed("rate") {
		sc.SampleRate = flagSampleRate
	}
	if flag.CommandLine.Changed("geometry") {
		w, h, err := parseGeometry(flagGeometry)
		if err != nil {
			return sc, err
		}
		sc.PreviewWidth, sc.PreviewHeight = w, h
	}
	return sc, sc.Validate()
}

func parseGeometry(s string) (width, height int, err error) {
	if n, err := fmt.Sscanf(s, "%dx%d", &width, &height); n != 2 || err != nil {
		return 0, 0, errors.Errorf("invalid geometry %q, want WxH", s)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, errors.Errorf("invalid geometry %q", s)
	}
	return width, height, nil
}

func run(sc alohacapture.SessionConfig) error {
	cam, err := camera.OpenSource(flagVideoSource)
	if err != nil {
		return err
	}
	mic, err := audio.OpenSource(flagAudioSource)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m, err := metrics.NewCapture(reg)
	if err != nil {
		return err
	}
	if flagMetricsAddress != "" {
		srv := serveMetrics(flagMetricsAddress, reg)
		defer srv.Close()
	}

	stats := newStatsSink(time.Second)
	sink := media.Sink(stats)
	if flagVideoOut != "" || flagAudioOut != "" {
		dump, err := media.CreateFileSink(flagVideoOut, flagAudioOut)
		if err != nil {
			return err
		}
		defer dump.Close()
		sink = media.Tee(stats, dump)
	}

	ctl, err := alohacapture.NewController(alohacapture.Config{
		Camera:     cam,
		Microphone: mic,
		Sink:       sink,
		Metrics:    m,
		Session:    sc,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if flagDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, flagDuration)
		defer cancel()
	}

	if err := ctl.Acquire(); err != nil {
		return err
	}
	defer ctl.Release()

	size, err := ctl.StartPreview(nil)
	if err != nil {
		return err
	}
	log.Info("Preview running at %v", size)

	session, err := ctl.StartRecording()
	if err != nil {
		return err
	}
	log.Info("Recording session %s, press ^C to stop", session.ID)

	var failure error
	select {
	case <-ctx.Done():
	case failure = <-ctl.Errors():
		log.Error("%v", failure)
	}

	if err := ctl.StopRecording(); err != nil {
		log.Error("Stop: %v", err)
	}
	st := ctl.Stats()
	stats.summary(st)
	return failure
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server: %v", err)
		}
	}()
	return srv
}
