package automation

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/apply"
	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/discovery"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// LiveConfig holds the settings of the production collaborators.
type LiveConfig struct {
	Browser   browser.Config
	Discovery discovery.Config
	Apply     apply.Config
}

// LiveDeps wires Chrome, discovery and the application state machine around
// the given login manager, resume loader and oracle.
func LiveDeps(cfg LiveConfig, auth Establisher, resumes ResumeLoader, oracle apply.Answerer, history HistoryWriter, log logrus.FieldLogger) Deps {
	return Deps{
		Launch: func(ctx context.Context) (browser.Session, error) {
			return browser.Launch(ctx, cfg.Browser, log)
		},
		Login:   auth,
		Resumes: resumes,
		Finder: func(s browser.Session) Finder {
			return discovery.New(s, cfg.Discovery, log)
		},
		Applier: func(s browser.Session, corpus types.ResumeCorpus, profile *types.CandidateProfile) Applier {
			return apply.NewMachine(s, oracle, corpus, profile, cfg.Apply, log)
		},
		History: history,
		Between: cfg.Browser.Pacing.Navigation,
	}
}
