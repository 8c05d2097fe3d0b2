package bootstrap

import (
	"context"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/audio"
	"github.com/modelpath-dev/TuroAISTT/internal/config"
	"github.com/modelpath-dev/TuroAISTT/internal/logging"
	"github.com/modelpath-dev/TuroAISTT/internal/pipeline"
	"github.com/modelpath-dev/TuroAISTT/internal/ports"
	"github.com/modelpath-dev/TuroAISTT/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.StepController
	Pipeline   *pipeline.Client
	Capture    *audio.CaptureManager
	Config     config.Config
}

// Build wires all client dependencies for the current runtime.
func Build(eventSink ports.EventSink, opener ports.URLOpener, overrides config.Overrides) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	cfg, err = cfg.Apply(overrides)
	if err != nil {
		return Services{}, err
	}

	logging.Init(cfg.Log.Level, cfg.Log.JSON)

	client, err := pipeline.NewClient(cfg.Backend.BaseURL)
	if err != nil {
		return Services{}, err
	}

	capture := audio.NewCaptureManager(
		audio.NewFFMPEGMicrophone(cfg.Audio.RecorderCommand),
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
	)

	if opener == nil {
		opener = SystemBrowser{}
	}
	controller := usecase.NewStepController(capture, client, opener, eventSink)

	log.Info().
		Str("backend", client.BaseURL()).
		Str("audioInput", cfg.Audio.InputDevice).
		Str("audioInputFormat", cfg.Audio.InputFormat).
		Msg("services ready")

	return Services{
		Controller: controller,
		Pipeline:   client,
		Capture:    capture,
		Config:     cfg,
	}, nil
}

// SystemBrowser opens URLs with the desktop's default browser.
type SystemBrowser struct{}

func (SystemBrowser) OpenURL(_ context.Context, url string) error {
	return browser.OpenURL(url)
}
