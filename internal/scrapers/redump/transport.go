package redump

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"path"
	"time"

	"redumparchive/internal/components/assert"
	"redumparchive/internal/components/telemetry"
	"redumparchive/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Download is a binary response along with the filename the server suggested (if any).
type Download struct {
	Body     []byte
	Filename string
}

// Transport is the single network capability the archiver depends on, each
// call is one attempt, retrying is the Client's job.
type Transport interface {
	GetText(ctx context.Context, url string) (string, error)
	GetBytes(ctx context.Context, url string) (Download, error)
	PostForm(ctx context.Context, url string, form map[string]string) (string, error)
}

type RestyOptions struct {
	Endpoints Endpoints
	Timeout   time.Duration
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	CloudflareBypass  bool
	// Dump receives every raw exchange when non-nil.
	Dump restyutil.Output
}

// RestyTransport implements Transport with a cookie-carrying resty client.
type RestyTransport struct {
	http *resty.Client
}

func NewRestyTransport(opts RestyOptions, tel telemetry.API) (*RestyTransport, error) {
	assert.NotNil(tel)

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(opts.Endpoints.Hosts()...))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	httpClient.SetTimeout(timeout)

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, opts.Dump)

	return &RestyTransport{http: httpClient}, nil
}

func (t *RestyTransport) GetText(ctx context.Context, url string) (string, error) {
	res, err := t.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", err
	}
	// not-found disc pages are served with a 404 but still carry the
	// text the parser looks for.
	if !res.IsSuccess() && res.StatusCode() != http.StatusNotFound {
		return "", fmt.Errorf("get %s: unexpected status %s", url, res.Status())
	}
	return string(res.Body()), nil
}

func (t *RestyTransport) GetBytes(ctx context.Context, url string) (Download, error) {
	res, err := t.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return Download{}, err
	}
	if !res.IsSuccess() {
		return Download{}, fmt.Errorf("get %s: unexpected status %s", url, res.Status())
	}
	return Download{
		Body:     res.Body(),
		Filename: suggestedFilename(res.Header().Get("Content-Disposition")),
	}, nil
}

func (t *RestyTransport) PostForm(ctx context.Context, url string, form map[string]string) (string, error) {
	res, err := t.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(url)
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("post %s: unexpected status %s", url, res.Status())
	}
	return string(res.Body()), nil
}

func suggestedFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := path.Base(params["filename"])
	if name == "." || name == "/" {
		return ""
	}
	return name
}
