package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ZaguanLabs/gotlive"
	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/clock"
	"github.com/ZaguanLabs/gotlive/gate"
	"github.com/ZaguanLabs/gotlive/provider"
	"github.com/ZaguanLabs/gotlive/store"
)

// Engine is an engine together with the backends built for it.
type Engine struct {
	*gotlive.Engine

	// Readiness is the settle gate, when WaitReadiness is set.
	Readiness *gate.Readiness

	closers []func() error
}

// Close stops the engine and releases every backend, most recent first.
func (e *Engine) Close() error {
	e.Engine.Close()
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewCache builds the translation cache.
func (c Config) NewCache(ctx context.Context) (cache.TranslationCache, func() error, error) {
	switch c.CacheBackend {
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			URL:       c.RedisURL,
			TTL:       c.CacheTTL,
			KeyPrefix: c.RedisKeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	case CacheMemory, "":
		return cache.NewInMemoryCache(c.CacheTTL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
}

// NewStore builds the language preference store.
func (c Config) NewStore() (store.PreferenceStore, func() error, error) {
	switch c.StoreKind {
	case StoreFile:
		return store.NewFileStore(c.StorePath), nil, nil
	case StoreSQLite:
		s, err := store.NewSQLiteStore(c.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case StoreMemory, "":
		return store.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown preference store %q", c.StoreKind)
	}
}

// NewTranslator builds the remote translator, preceded by the catalog when
// CatalogDir is set and wrapped in a rate limiter when RateLimitRPM is set.
func (c Config) NewTranslator() (gotlive.Translator, func() error, error) {
	var (
		remote gotlive.Translator
		done   func() error
	)

	switch c.Provider {
	case ProviderOpenAI:
		remote = provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:        c.OpenAIAPIKey,
			Model:         c.OpenAIModel,
			BaseURL:       c.OpenAIBaseURL,
			SourceLang:    c.SourceLanguage,
			Context:       c.TranslationContext,
			ExcludedTerms: c.ExcludedTerms,
		})
	case ProviderLingva:
		p, err := provider.NewLingvaProvider(provider.LingvaConfig{
			BaseURL:    c.LingvaURL,
			SourceLang: c.SourceLanguage,
		})
		if err != nil {
			return nil, nil, err
		}
		remote = p
	case ProviderGoogle:
		p, err := provider.NewGoogleProvider(provider.GoogleConfig{
			APIKey:          c.GoogleAPIKey,
			CredentialsFile: c.GoogleCredentials,
			SourceLang:      c.SourceLanguage,
		})
		if err != nil {
			return nil, nil, err
		}
		remote, done = p, p.Close
	case ProviderMock, "":
		remote = provider.NewMock()
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.RateLimitRPM > 0 {
		remote = gotlive.NewRateLimitedTranslator(remote, gotlive.RateLimitConfig{
			RequestsPerMinute: c.RateLimitRPM,
			BurstSize:         c.RateLimitBurst,
		})
	}

	if c.CatalogDir == "" {
		return remote, done, nil
	}

	catalog, err := provider.NewCatalogProvider(c.SourceLanguage)
	if err != nil {
		return nil, nil, err
	}
	if _, err := catalog.LoadDir(c.CatalogDir); err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}
	return provider.NewChain(catalog, remote), done, nil
}

// EngineOptions maps the queue and language settings to engine options.
func (c Config) EngineOptions() []gotlive.Option {
	return []gotlive.Option{
		gotlive.WithSourceLanguage(c.SourceLanguage),
		gotlive.WithPreferenceKey(c.PreferenceKey),
		gotlive.WithBatchSize(c.BatchSize),
		gotlive.WithBatchDelay(c.BatchDelay),
		gotlive.WithMaxConcurrent(c.MaxConcurrent),
		gotlive.WithRetryPolicy(c.RetryPolicy()),
	}
}

// Open validates the configuration and builds an engine with all of its
// backends. Options in extra are applied last.
func (c Config) Open(ctx context.Context, logger *slog.Logger, extra ...gotlive.Option) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{}
	fail := func(err error) (*Engine, error) {
		for i := len(e.closers) - 1; i >= 0; i-- {
			_ = e.closers[i]()
		}
		return nil, err
	}
	track := func(cl func() error) {
		if cl != nil {
			e.closers = append(e.closers, cl)
		}
	}

	tc, cl, err := c.NewCache(ctx)
	if err != nil {
		return fail(fmt.Errorf("cache: %w", err))
	}
	track(cl)

	prefs, cl, err := c.NewStore()
	if err != nil {
		return fail(fmt.Errorf("preference store: %w", err))
	}
	track(cl)

	t, cl, err := c.NewTranslator()
	if err != nil {
		return fail(fmt.Errorf("provider: %w", err))
	}
	track(cl)

	opts := append(c.EngineOptions(),
		gotlive.WithCache(tc),
		gotlive.WithPreferenceStore(prefs),
	)
	if logger != nil {
		opts = append(opts, gotlive.WithLogger(logger))
	}
	if c.WaitReadiness {
		e.Readiness = gate.NewReadiness(clock.Real(), c.SettleDelay)
		opts = append(opts, gotlive.WithReadiness(e.Readiness))
	}
	opts = append(opts, extra...)

	engine, err := gotlive.New(ctx, t, opts...)
	if err != nil {
		return fail(err)
	}
	e.Engine = engine

	if logger != nil {
		logger.Debug("engine ready",
			"source", c.SourceLanguage,
			"language", engine.CurrentLanguage(),
			"cache", c.CacheBackend,
			"store", c.StoreKind,
			"provider", c.Provider,
		)
	}
	return e, nil
}
