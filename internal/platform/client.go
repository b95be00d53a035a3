// Package platform is the REST client for the external classroom platform.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/gradebook-sync-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-sync-api/pkg/errors"
)

const (
	breakerName    = "classroom-platform"
	gradeMask      = "assignedGrade,draftGrade"
	maxErrorBody   = 4 << 10
	maxRosterPages = 50
)

// TokenSource supplies the bearer token for platform calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", appErrors.Clone(appErrors.ErrReauthRequired, "no platform access token configured")
	}
	return string(t), nil
}

// Observer receives request and circuit breaker telemetry.
type Observer interface {
	ObservePlatformRequest(operation, outcome string, duration time.Duration)
	SetBreakerState(name string, state float64)
}

// Config tunes the client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
	PageSize        int
	HTTPClient      *http.Client
	Logger          *zap.Logger
	Observer        Observer
}

// Client talks to the platform with rate limiting and a circuit breaker.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	pageSize int
	logger   *zap.Logger
	observer Observer
}

// NewClient constructs a platform client.
func NewClient(cfg Config, tokens TokenSource) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:  cfg.BaseURL,
		http:     httpClient,
		tokens:   tokens,
		limiter:  rate.NewLimiter(limit, burst),
		pageSize: cfg.PageSize,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || clientError(err) || errors.Is(err, context.Canceled) ||
				appErrors.HasCode(err, appErrors.ErrReauthRequired.Code)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("platform circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if c.observer != nil {
				c.observer.SetBreakerState(name, breakerStateValue(to))
			}
		},
	})
	if c.observer != nil {
		c.observer.SetBreakerState(breakerName, 0)
	}
	return c
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ListSubmissions lists the submissions of one user for a linked course work.
func (c *Client) ListSubmissions(ctx context.Context, link models.ExternalLink, userID string) ([]Submission, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("userId", userID)
	}
	var out []Submission
	for {
		body, err := c.do(ctx, "list_submissions", http.MethodGet, submissionsPath(link), q, nil)
		if err != nil {
			return nil, err
		}
		var page submissionList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode submissions: %w", err)
		}
		out = append(out, page.StudentSubmissions...)
		if page.NextPageToken == "" {
			return out, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

// PatchGrade writes grade as both the draft and the assigned grade.
func (c *Client) PatchGrade(ctx context.Context, link models.ExternalLink, submissionID string, grade float64) (*Submission, error) {
	payload, err := json.Marshal(gradePatch{AssignedGrade: grade, DraftGrade: grade})
	if err != nil {
		return nil, fmt.Errorf("encode grade patch: %w", err)
	}
	q := url.Values{"updateMask": []string{gradeMask}}
	path := submissionsPath(link) + "/" + url.PathEscape(submissionID)
	body, err := c.do(ctx, "patch_grade", http.MethodPatch, path, q, payload)
	if err != nil {
		return nil, err
	}
	var sub Submission
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &sub); err != nil {
			return nil, fmt.Errorf("decode patched submission: %w", err)
		}
	}
	return &sub, nil
}

// FetchRoster returns every student enrolled in a course.
func (c *Client) FetchRoster(ctx context.Context, courseID string) ([]Student, error) {
	q := url.Values{"pageSize": []string{strconv.Itoa(c.pageSize)}}
	path := "/v1/courses/" + url.PathEscape(courseID) + "/students"
	var out []Student
	for page := 0; page < maxRosterPages; page++ {
		body, err := c.do(ctx, "fetch_roster", http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}
		var rp rosterPage
		if err := json.Unmarshal(body, &rp); err != nil {
			return nil, fmt.Errorf("decode roster: %w", err)
		}
		for _, s := range rp.Students {
			out = append(out, Student{
				UserID:     s.UserID,
				GivenName:  s.Profile.Name.GivenName,
				FamilyName: s.Profile.Name.FamilyName,
				FullName:   s.Profile.Name.FullName,
				Email:      s.Profile.EmailAddress,
			})
		}
		if rp.NextPageToken == "" {
			return out, nil
		}
		q.Set("pageToken", rp.NextPageToken)
	}
	return nil, fmt.Errorf("fetch roster: more than %d pages", maxRosterPages)
}

func submissionsPath(link models.ExternalLink) string {
	return "/v1/courses/" + url.PathEscape(link.CourseID) +
		"/courseWork/" + url.PathEscape(link.CourseWorkID) + "/studentSubmissions"
}

// do runs one request through the limiter and breaker and maps failures onto
// typed errors: 401 becomes REAUTH_REQUIRED, everything else EXTERNAL_REQUEST_FAILURE.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, payload []byte) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.roundTrip(ctx, op, method, path, q, payload)
	})
	c.observe(op, err, time.Since(start))
	if err == nil {
		return body, nil
	}

	var appErr *appErrors.Error
	switch {
	case IsUnauthorized(err):
		return nil, appErrors.WrapAs(appErrors.ErrReauthRequired, err, "")
	case errors.As(err, &appErr):
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, appErrors.WrapAs(appErrors.ErrExternalRequestFailure, err, "platform temporarily unavailable")
	default:
		return nil, appErrors.WrapAs(appErrors.ErrExternalRequestFailure, err, "")
	}
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, q url.Values, payload []byte) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			se.Message = eb.Error.Message
		}
		return nil, se
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return body, nil
}

func (c *Client) observe(op string, err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	case IsUnauthorized(err):
		outcome = "unauthorized"
	default:
		outcome = "failure"
	}
	c.observer.ObservePlatformRequest(op, outcome, d)
}
