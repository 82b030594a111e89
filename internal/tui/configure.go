// Package tui implements the interactive configuration wizard.
package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/bkomar/voice-to-text-transcriber/internal/config"
	"github.com/bkomar/voice-to-text-transcriber/internal/model"
)

// Result is the outcome of a wizard run.
type Result struct {
	Config    *config.Config
	Cancelled bool
}

// Run walks the user through provider, model, language and server
// settings, editing cfg in place.
func Run(cfg *config.Config) (Result, error) {
	fmt.Println(Logo())
	fmt.Println()

	if err := editTranscription(cfg); err != nil {
		if err == huh.ErrUserAborted {
			return Result{Cancelled: true}, nil
		}
		return Result{}, err
	}
	if err := editServer(cfg); err != nil {
		if err == huh.ErrUserAborted {
			return Result{Cancelled: true}, nil
		}
		return Result{}, err
	}
	if err := editNotifications(cfg); err != nil {
		if err == huh.ErrUserAborted {
			return Result{Cancelled: true}, nil
		}
		return Result{}, err
	}

	return Result{Config: cfg}, nil
}

func editTranscription(cfg *config.Config) error {
	provider := cfg.Transcription.Provider
	apiKey := cfg.Transcription.APIKey

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription provider").
				Description("Local whisper.cpp runs on this machine; OpenAI uses the hosted API").
				Options(
					huh.NewOption("Local (whisper.cpp)", "whisper.cpp"),
					huh.NewOption("OpenAI API", "openai"),
				).
				Value(&provider),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Transcription.Provider = provider

	if provider == "openai" {
		keyForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("OpenAI API key").
					Description("Leave empty to use the OPENAI_API_KEY environment variable").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			),
		)
		if err := keyForm.Run(); err != nil {
			return err
		}
		cfg.Transcription.APIKey = apiKey
		cfg.Transcription.Model = "whisper-1"
		return editLanguage(cfg)
	}

	return editLocalModel(cfg)
}

func editLocalModel(cfg *config.Config) error {
	var options []huh.Option[string]
	for _, m := range model.List() {
		label := fmt.Sprintf("%s (%s)", m.Name, m.Size)
		if model.IsInstalled(m.ID) {
			label += " [installed]"
		}
		options = append(options, huh.NewOption(label, m.ID))
	}

	selected := cfg.Transcription.Model
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Whisper model").
				Description("Uninstalled models are downloaded on first load").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Transcription.Model = selected

	return editLanguage(cfg)
}

func editLanguage(cfg *config.Config) error {
	language := cfg.Transcription.Language
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Description("Default language for transcription").
				Options(languageOptions()...).
				Value(&language),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Transcription.Language = language
	return nil
}

func editServer(cfg *config.Config) error {
	listen := cfg.Server.Listen
	metricsEnabled := cfg.Server.Metrics

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Value(&listen),
			huh.NewConfirm().
				Title("Expose Prometheus metrics?").
				Value(&metricsEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Server.Listen = listen
	cfg.Server.Metrics = metricsEnabled
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	kind := cfg.Notifications.Type
	if kind == "" {
		kind = "desktop"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable notifications?").
				Value(&enabled),
			huh.NewSelect[string]().
				Title("Notification type").
				Options(
					huh.NewOption("Desktop (notify-send)", "desktop"),
					huh.NewOption("Log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&kind),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = kind
	return nil
}

func languageOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("Auto-detect", ""),
		huh.NewOption("English", "en"),
		huh.NewOption("Spanish", "es"),
		huh.NewOption("French", "fr"),
		huh.NewOption("German", "de"),
		huh.NewOption("Italian", "it"),
		huh.NewOption("Portuguese", "pt"),
		huh.NewOption("Dutch", "nl"),
		huh.NewOption("Polish", "pl"),
		huh.NewOption("Russian", "ru"),
		huh.NewOption("Ukrainian", "uk"),
		huh.NewOption("Japanese", "ja"),
		huh.NewOption("Korean", "ko"),
		huh.NewOption("Chinese", "zh"),
	}
}
