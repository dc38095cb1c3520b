package revgeo

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/retrieval"
)

// reverseResponse is the remote reverse-lookup payload.
type reverseResponse struct {
	Matched bool    `json:"matched"`
	Street  string  `json:"street"`
	City    string  `json:"city"`
	State   string  `json:"state"`
	ZipCode string  `json:"zip_code"`
	Lat     float64 `json:"latitude"`
	Lng     float64 `json:"longitude"`
}

// HTTPProvider resolves points against a remote reverse-lookup service
// through the fault-tolerant retrieval client.
type HTTPProvider struct {
	baseURL   string
	retrieval *retrieval.Client
}

// NewHTTPProvider creates an HTTPProvider. rc may be nil to use the
// default retrieval policy.
func NewHTTPProvider(baseURL string, rc *retrieval.Client) *HTTPProvider {
	if rc == nil {
		rc = retrieval.NewClient(retrieval.DefaultConfig())
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		retrieval: rc,
	}
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "http" }

// Available implements Provider.
func (p *HTTPProvider) Available() bool { return p.baseURL != "" }

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, pt geomath.Point) (*model.ResolvedProperty, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(pt.Lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(pt.Lng, 'f', -1, 64)},
	}

	out := retrieval.GetJSON[reverseResponse](ctx, p.retrieval, p.baseURL+"/reverse", params, nil)
	if !out.OK {
		if out.Kind == retrieval.KindNotFound {
			return nil, ErrNoMatch
		}
		if out.Err != nil {
			return nil, eris.Wrapf(out.Err, "revgeo: http lookup (%s)", out.Kind)
		}
		return nil, eris.Errorf("revgeo: http lookup failed (%s, status %d)", out.Kind, out.StatusCode)
	}

	resp := out.Data
	if !resp.Matched {
		return nil, ErrNoMatch
	}

	resolved := &model.ResolvedProperty{
		Street:  resp.Street,
		City:    resp.City,
		State:   resp.State,
		ZipCode: resp.ZipCode,
		Point:   geomath.Point{Lat: resp.Lat, Lng: resp.Lng},
	}
	if resolved.Point.Lat == 0 && resolved.Point.Lng == 0 {
		resolved.Point = pt
	}
	return resolved, nil
}
