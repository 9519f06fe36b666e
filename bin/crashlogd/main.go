package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/elwinar/crashlog"
	"github.com/elwinar/crashlog/pkg/conf"
	"github.com/elwinar/crashlog/pkg/notify"
	"github.com/elwinar/crashlog/pkg/report"
	"github.com/elwinar/crashlog/pkg/store"
	"github.com/inconshreveable/log15"
	"github.com/julienschmidt/httprouter"
	"github.com/phyber/negroni-gzip/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/xid"
	"github.com/urfave/negroni"
)

var (
	Version = "N/C"
	BuiltAt = "N/C"
	Commit  = "N/C"
)

// main is tasked to bootstrap the service and notify of termination signals.
func main() {
	var s service
	s.configure()

	err := s.init()
	if err != nil {
		s.logger.Crit("initializing", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		signals := make(chan os.Signal, 2)
		signal.Notify(signals, os.Interrupt)
		<-signals
		cancel()
	}()

	s.run(ctx)
}

type service struct {
	bind         string
	dir          string
	indexPath    string
	logLevel     string
	scanInterval time.Duration
	prune        bool
	storageWarn  datasize.ByteSize
	printVersion bool

	logger    log15.Logger
	registry  *prometheus.Registry
	indexed   *prometheus.CounterVec
	sizes     *prometheus.HistogramVec
	pruned    prometheus.Counter
	available prometheus.Gauge
	router    *httprouter.Router
	stack     *negroni.Negroni
	index     Index
	store     store.Store
	storage   report.Storage
	notifier  *notify.Notifier
	scanQueue chan struct{}
	seen      map[string]datasize.ByteSize
}

// configure read and validate the configuration of the service and populate
// the appropriate fields.
func (s *service) configure() {
	fs := flag.NewFlagSet("crashlogd-"+Version, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage of crashlogd: crashlogd [options]")
		fs.PrintDefaults()
	}
	fs.StringVar(&s.bind, "bind", "localhost:1106", "address to listen to")
	fs.StringVar(&s.dir, "dir", filepath.Join(os.TempDir(), store.DirName), "path of the report directory")
	fs.StringVar(&s.indexPath, "index", filepath.Join(os.TempDir(), "crashlogd.index"), "path of the report index")
	fs.StringVar(&s.logLevel, "log.level", "info", "minimum level of the logs")
	fs.DurationVar(&s.scanInterval, "scan.interval", 30*time.Second, "interval between two scans of the report directory")
	fs.BoolVar(&s.prune, "prune", false, "prune the report directory before each scan")
	fs.TextVar(&s.storageWarn, "storage.warn", datasize.ByteSize(100*datasize.MB), "warn when the available storage goes below this size")
	fs.BoolVar(&s.printVersion, "version", false, "print the version of crashlogd")
	fs.String("conf", "/etc/crashlog/crashlogd.conf", "configuration file to load")
	conf.Parse(fs, "conf")
}

// init does the actual bootstraping of the service, once the configuration is
// read. It encompass any start-up task like opening the index, registering
// the endpoints, etc.
func (s *service) init() (err error) {
	if s.printVersion {
		fmt.Println("crashlogd", Version)
		os.Exit(0)
	}

	// Logger
	lvl, err := log15.LvlFromString(s.logLevel)
	if err != nil {
		lvl = log15.LvlInfo
	}
	s.logger = log15.New()
	s.logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stdout, log15.LogfmtFormat())))

	// Fulltext Index
	s.logger.Debug("opening index", "path", s.indexPath)
	index, err := NewBleveIndex(s.indexPath)
	if err != nil {
		return wrap(err, `opening index`)
	}

	s.setup(store.NewFileStore(s.dir), index, report.FSStorage{})
	return nil
}

// setup wires the components of the service together.
func (s *service) setup(st store.Store, index Index, storage report.Storage) {
	if s.logger == nil {
		s.logger = log15.New()
		s.logger.SetHandler(log15.DiscardHandler())
	}

	s.store = st
	s.index = index
	s.storage = storage
	s.scanQueue = make(chan struct{}, 1)
	s.seen = make(map[string]datasize.ByteSize)

	// The notification markers are kept in the report directory, the
	// service only ever reads and cancels them.
	s.notifier = &notify.Notifier{
		Surface: notify.NewTerminal(io.Discard, st.Dir()),
		Log:     s.logger,
	}

	// Prometheus metrics
	s.logger.Debug("registering metrics")
	s.registry = prometheus.NewRegistry()
	s.indexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crashlogd_indexed_total",
		Help: "number of crash reports indexed",
	}, []string{"mode", "package"})
	s.sizes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crashlogd_report_size_kilobytes",
		Help:    "size of the crash reports indexed",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"mode"})
	s.pruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crashlogd_pruned_total",
		Help: "number of pruning of the report directory",
	})
	s.available = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crashlogd_storage_available_bytes",
		Help: "space available on the filesystem of the report directory",
	})
	s.registry.MustRegister(s.indexed, s.sizes, s.pruned, s.available)

	// API Routes
	s.logger.Debug("registering routes")
	s.router = httprouter.New()

	s.router.GET("/", s.root)
	s.router.GET("/about", s.about)

	s.router.GET("/reports", s.searchReports)
	s.router.DELETE("/reports", s.deleteReports)
	s.router.POST("/reports/_prune", s.pruneReports)
	s.router.GET("/reports/:name", s.getReport)
	s.router.GET("/reports/:name/_view", s.viewReport)
	s.router.GET("/reports/:name/_summary", s.getSummary)

	s.router.GET("/notification", s.getNotification)
	s.router.DELETE("/notification", s.dismissNotification)

	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Middleware stack
	s.stack = negroni.New()
	s.stack.Use(negroni.NewRecovery())
	s.stack.Use(negroni.HandlerFunc(s.logRequest))
	s.stack.Use(cors.Default())
	s.stack.Use(gzip.Gzip(gzip.DefaultCompression))
	s.stack.UseHandler(s.router)
}

// run does the actual running of the service until the context is closed.
func (s *service) run(ctx context.Context) {
	// Keep the index in line with the report directory.
	go func() {
		ticker := time.NewTicker(s.scanInterval)
		defer ticker.Stop()

		s.scan()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scan()
			case <-s.scanQueue:
				s.scan()
			}
		}
	}()

	server := &http.Server{
		Addr:    s.bind,
		Handler: s.stack,
	}

	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		server.Shutdown(ctx)
	}()

	s.logger.Info("starting", "bind", s.bind, "dir", s.store.Dir())
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("closing server", "err", err)
	}
	s.logger.Info("stopping")
}

// requestScan asks for a scan of the report directory without waiting for
// it. Requests made while a scan is pending are merged.
func (s *service) requestScan() {
	select {
	case s.scanQueue <- struct{}{}:
	default:
	}
}

// scan the report directory, pruning it first if configured to.
func (s *service) scan() {
	if s.prune {
		err := s.store.Prune()
		if err != nil {
			s.logger.Error("pruning", "err", err)
		} else {
			s.pruned.Inc()
		}
	}

	p := &scanProcess{
		index: s.index,
		log:   s.logger,
		store: s.store,
		seen:  s.seen,
	}
	p.listFiles()
	p.listIndexed()
	p.indexChanged()
	p.cleanRemoved()

	for _, r := range p.added {
		s.indexed.With(prometheus.Labels{
			"mode":    r.summary.Mode,
			"package": r.summary.PackageName,
		}).Inc()
		s.sizes.With(prometheus.Labels{
			"mode": r.summary.Mode,
		}).Observe(r.size.KBytes())
	}

	if p.err != nil {
		s.logger.Error("scanning", "err", p.err)
		return
	}
	if len(p.added) != 0 || len(p.updated) != 0 || len(p.removed) != 0 {
		s.logger.Info("scanned report directory", "added", len(p.added), "updated", len(p.updated), "removed", len(p.removed))
	}

	s.checkStorage()
}

// checkStorage exposes the available storage, and warns when it gets low.
func (s *service) checkStorage() {
	_, available, err := s.storage.Stat(s.store.Dir())
	if err != nil {
		s.logger.Debug("reading storage statistics", "err", err)
		return
	}

	s.available.Set(float64(available))
	if datasize.ByteSize(available) < s.storageWarn {
		s.logger.Warn("low storage", "available", datasize.ByteSize(available).HumanReadable(), "threshold", s.storageWarn.HumanReadable())
	}
}

// logRequest is the logging middleware for the HTTP server.
func (s *service) logRequest(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	id := xid.New().String()
	rw.Header().Set("X-Request-Id", id)

	next(rw, r)

	res := rw.(negroni.ResponseWriter)
	s.logger.Info("request",
		"request_id", id,
		"started_at", start,
		"duration", time.Since(start),
		"method", r.Method,
		"path", r.URL.Path,
		"status", res.Status(),
	)
}

// write a payload and a status to the ResponseWriter.
func write(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	_, _ = w.Write(raw)
}

// write an error and a status to the ResponseWriter.
func writeError(w http.ResponseWriter, status int, err error) {
	write(w, status, crashlog.Error{Err: err.Error()})
}

// wrap an error using the provided message and arguments.
func wrap(err error, msg string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
