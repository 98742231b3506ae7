package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	adapter *telegram.Adapter

	resolver *reminder.Resolver
	delivery *reminder.Delivery
	svc      *reminder.Service
	rt       *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap logging with the telegram sink disabled: Apply() warns when
	// the sink is enabled before a target exists, so set the target first
	// and re-Apply the final config.
	baseLogCfg := mapLoggingConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		}
	}
	logSvc.Apply(mapLoggingConfig(cfg))

	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("delivery audit log enabled", logx.String("driver", sc.Driver))
	}

	rcfg, err := mapResolverConfig(cfg)
	if err != nil {
		return nil, err
	}
	resolver := reminder.NewResolver(rcfg)

	rstore := reminder.NewStore()
	sched := reminder.NewScheduler(log.With(logx.String("comp", "scheduler")))

	dcfg, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	delivery := reminder.NewDelivery(dcfg, ad, ad, log.With(logx.String("comp", "delivery")), bus)
	delivery.SetOptions(router.DeliveredOptions)

	scfg, err := mapServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := reminder.NewService(scfg, resolver, rstore, sched, delivery,
		log.With(logx.String("comp", "reminder")), bus, nil)

	rtcfg, err := mapRouterConfig(cfg, resolver.Location())
	if err != nil {
		return nil, err
	}
	rt := router.New(rtcfg, ad, svc, log.With(logx.String("comp", "router")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		adapter:  ad,
		resolver: resolver,
		delivery: delivery,
		svc:      svc,
		rt:       rt,
		updates:  make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error
// or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.svc.SetSupervisor(a.sup)

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		// component mapping catches what schema validation can't
		if _, err := mapResolverConfig(cfg); err != nil {
			return err
		}
		if _, err := mapServiceConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDeliveryConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.svc.Start(); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.rt.DispatchLoop(c, a.updates)
	})

	// Best-effort Telegram /menu autocomplete.
	a.sup.Go0("telegram.menu.update", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 5*time.Second)
		defer cancel()
		if err := a.adapter.UpdateMenuCommands(mctx, a.rt.MenuCommands()); err != nil {
			a.log.Debug("menu update failed", logx.Err(err))
		}
	})

	// Event tap: debug-log lifecycle events and append delivery outcomes to
	// the audit log.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.tap", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				if a.store == nil {
					continue
				}
				if e.Type != eventbus.TypeDeliveryDone && e.Type != eventbus.TypeDeliveryFailed {
					continue
				}
				de, ok := e.Data.(reminder.DeliveryEvent)
				if !ok {
					continue
				}
				wctx, cancel := context.WithTimeout(c, 2*time.Second)
				err := a.store.AppendDelivery(wctx, storage.DeliveryEntry{
					At:         de.At,
					ReminderID: de.ID,
					ChatID:     de.ChatID,
					Recipients: de.Recipients,
					Sent:       de.Sent,
					Fallback:   de.Fallback,
					Failed:     de.Failed,
					Error:      de.Error,
					TookMS:     de.TookMS,
				})
				cancel()
				if err != nil {
					a.log.Warn("audit append failed", logx.Err(err))
				}
			}
		}
	})

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig applies a validated config to the running components. The
// validator already accepted it, so mapping errors here are unreachable;
// they are still checked so a logic drift can't half-apply a config.
func (a *App) applyConfig(cfg *config.Config) {
	// log target first, so Apply() doesn't warn when the sink is enabled
	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if chatID, err := strconv.ParseInt(gl, 10, 64); err == nil {
			a.logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
		}
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	rcfg, err := mapResolverConfig(cfg)
	if err == nil {
		resolver := reminder.NewResolver(rcfg)
		a.svc.SetResolver(resolver)
		a.resolver = resolver
	} else {
		a.log.Warn("invalid resolver config; keeping previous", logx.Err(err))
	}

	if dcfg, err := mapDeliveryConfig(cfg); err == nil {
		a.delivery.Apply(dcfg)
	} else {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	}

	if scfg, err := mapServiceConfig(cfg); err == nil {
		a.svc.Apply(scfg)
	} else {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	}

	if rtcfg, err := mapRouterConfig(cfg, a.resolver.Location()); err == nil {
		a.rt.Apply(rtcfg)
	} else {
		a.log.Warn("invalid router config; keeping previous", logx.Err(err))
	}

	if _, enabled, _ := mapStorageConfig(cfg); enabled != (a.store != nil) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem > 0 && rem < max {
				max = rem
			}
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("router", 1*time.Second, func(context.Context) error { a.rt.Stop(); return nil })
	step("reminder", 2*time.Second, func(context.Context) error { a.svc.Stop(); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
