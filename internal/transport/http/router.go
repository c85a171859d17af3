package http

import (
	"log"
	"net/http"
)

// Service is everything the HTTP surface needs from the application.
type Service interface {
	HoldService
	OrderService
	PaymentService
}

type Options struct {
	Routes      Routes
	Session     SessionOptions
	CORSOrigins []string
	Health      HealthCheck
	Logger      *log.Logger
}

// NewHandler assembles the routes and middleware. Everything but /health runs
// inside a browser session.
func NewHandler(svc Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Routes == (Routes{}) {
		opts.Routes = DefaultRoutes()
	}

	api := http.NewServeMux()
	api.Handle("/holds", HandleEnterHold(svc, opts.Routes))
	api.Handle("/holds/", HandleHold(svc, opts.Routes))
	api.Handle("/orders", HandleCreateOrder(svc))
	api.Handle("/orders/", HandleOrderStatus(svc))
	api.Handle("/payments/callback", HandleWidgetCallback(svc, opts.Routes))
	api.Handle(returnPath, HandleReturn(svc, opts.Routes, opts.Logger))
	api.Handle(returnPath+"/", HandleReturn(svc, opts.Routes, opts.Logger))
	api.Handle("/", unknownRoute())

	mux := http.NewServeMux()
	mux.Handle("/health", HandleHealth(opts.Health))
	mux.Handle("/", Sessions(opts.Session, api))

	return RequestLogger(CORS(opts.CORSOrigins, mux), opts.Logger)
}

// unknownRoute answers paths no handler claims. It runs inside the session
// middleware, so a stray browser request still gets its cookie.
func unknownRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	}
}
