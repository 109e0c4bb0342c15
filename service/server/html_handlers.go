package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type indexPage struct {
	PublicKey  string
	Network    string
	RPCURL     string
	Signer     bool
	HasBalance bool
	BalanceSOL float64
}

// handleIndexPage serves the landing page. The balance is best effort; a
// failed lookup leaves it out.
func handleIndexPage(renderer *TemplateRenderer, svc Wallet, rpc RPCEndpoint, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := indexPage{
			Network: svc.Network(),
			Signer:  svc.SignerConfigured(),
		}
		if rpc != nil {
			data.RPCURL = rpc.URL()
		}
		if pk, ok := svc.PublicKey(); ok {
			data.PublicKey = pk.String()
			if bal, err := svc.Balance(r.Context(), ""); err == nil {
				data.HasBalance = true
				data.BalanceSOL = bal.SOL
			} else {
				logger.WarnContext(r.Context(), "landing page balance lookup failed", "error", err)
			}
		}

		if err := renderer.Render(w, "index.html", data); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
