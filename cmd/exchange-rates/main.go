package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/fxtools/exchange-rates/internal/apperror"
	"github.com/fxtools/exchange-rates/internal/chart"
	"github.com/fxtools/exchange-rates/internal/config"
	"github.com/fxtools/exchange-rates/internal/platform/sqlite"
	"github.com/fxtools/exchange-rates/internal/provider/exchangerates"
	"github.com/fxtools/exchange-rates/internal/rate"
	raterepo "github.com/fxtools/exchange-rates/internal/repository/rate"
)

func main() {
	var (
		base       string
		start      string
		end        string
		currencies string
		populate   bool
		visualize  bool
		update     bool
	)

	pflag.StringVarP(&base, "base", "b", "USD", "base currency")
	pflag.StringVarP(&start, "start", "s", "2019-05-01", "start date of the query (YYYY-MM-DD)")
	pflag.StringVarP(&end, "end", "e", time.Now().UTC().Format("2006-01-02"), "end date of the query (YYYY-MM-DD)")
	pflag.StringVarP(&currencies, "currencies", "c", "USD,CAD", "comma separated currencies to chart")
	pflag.BoolVarP(&populate, "populate", "p", false, "populate the cache for the date range (rebuilds on base change)")
	pflag.BoolVarP(&visualize, "visualize", "v", false, "chart cached rates for the selected currencies")
	pflag.BoolVarP(&update, "update", "u", false, "poll indefinitely, appending one day as it completes")
	pflag.Parse()

	if !populate && !visualize && !update {
		slog.Warn("no mode flag given (-p, -v, -u); nothing to do")
		return
	}

	cfg := config.Load()

	rng, err := rate.ResolveRange(start, end)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		fail(err)
	}
	defer func() { _ = db.Close() }()

	store := raterepo.NewRepository(db.DB)
	source := exchangerates.New(exchangerates.WithEndpoint(cfg.APIEndpoint))
	charts := chart.NewService(store)
	filter := splitCurrencies(currencies)

	// The effective base may differ from the flag when the cache already
	// holds another one; downstream modes follow the cache.
	effectiveBase := base

	if populate {
		res, err := rate.NewService(store, source).Reconcile(ctx, rng, base, true, filter)
		if err != nil {
			fail(err)
		}
		effectiveBase = res.Base
	}

	if visualize {
		out, err := charts.Render(ctx, rng, effectiveBase, filter)
		if err != nil {
			fail(err)
		}
		fmt.Println(out)
	}

	if update {
		refresh := make(chan struct{}, 1)
		opts := []rate.PollerOption{rate.WithInterval(cfg.PollInterval)}
		if visualize {
			opts = append(opts, rate.WithNotify(func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			}))
		}
		poller := rate.NewPoller(store, source, effectiveBase, opts...)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return poller.Run(gctx, rng.From)
		})
		if visualize {
			// Redraw the chart as the poller lands new days.
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-refresh:
					}
					out, err := charts.Render(gctx, rng, effectiveBase, filter)
					if err != nil {
						return err
					}
					fmt.Println(out)
				}
			})
		}
		if err := g.Wait(); err != nil {
			fail(err)
		}
	}
}

func splitCurrencies(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func fail(err error) {
	code := apperror.Classify(err)
	slog.Error("run failed", "code", code, "error", err)
	os.Exit(code.ExitStatus())
}
