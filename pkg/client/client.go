package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/labcontrol/labcontrol-api/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/oauth2"
)

var tracer = otel.Tracer("labcontrol-client")

var (
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
)

type LabControlClient interface {
	GetModules(ctx context.Context) ([]types.Module, error)
	GetModule(ctx context.Context, id uint) (types.Module, error)
	CreateModule(ctx context.Context, req types.CreateModuleRequest) (types.ModuleResult, error)
	GetScene(ctx context.Context, moduleID uint) (types.SceneResponse, error)
	SetSceneMode(ctx context.Context, moduleID uint, mode types.Mode) (types.SceneResponse, error)
	ToggleDeviceFlag(ctx context.Context, moduleID uint, shelfID, rowID string, flag types.DeviceFlag) (types.MutationResult, error)
}

type labControlClient struct {
	url        string
	httpClient *http.Client
}

// New returns a client that sends the given token as a bearer token on every request.
func New(baseURL, token string) LabControlClient {
	return &labControlClient{
		url: baseURL,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
				Base:   otelhttp.NewTransport(http.DefaultTransport),
			},
		},
	}
}

// Login authenticates against the service and returns a client that uses the issued token.
func Login(ctx context.Context, baseURL, username, password string) (LabControlClient, types.LoginResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "login")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	c := &labControlClient{
		url:        baseURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}

	resp := types.LoginResponse{}
	err = c.do(ctx, http.MethodPost, "/api/login", types.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, types.LoginResponse{}, err
	}

	return New(baseURL, resp.Token), resp, nil
}

func (c *labControlClient) GetModules(ctx context.Context) ([]types.Module, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-modules")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	list := types.ModuleList{}
	err = c.do(ctx, http.MethodGet, "/api/getModulos", nil, &list)

	return list.Data, err
}

func (c *labControlClient) GetModule(ctx context.Context, id uint) (types.Module, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-module")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	m := types.Module{}
	err = c.do(ctx, http.MethodGet, "/api/getModuloById/"+strconv.FormatUint(uint64(id), 10), nil, &m)

	return m, err
}

func (c *labControlClient) CreateModule(ctx context.Context, req types.CreateModuleRequest) (types.ModuleResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-module")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp := types.ModuleResponse{}
	err = c.do(ctx, http.MethodPost, "/api/createModulo", req, &resp)

	return resp.Module, err
}

func (c *labControlClient) GetScene(ctx context.Context, moduleID uint) (types.SceneResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-scene")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	scene := types.SceneResponse{}
	err = c.do(ctx, http.MethodGet, scenePath(moduleID), nil, &scene)

	return scene, err
}

func (c *labControlClient) SetSceneMode(ctx context.Context, moduleID uint, mode types.Mode) (types.SceneResponse, error) {
	var err error

	ctx, span := tracer.Start(ctx, "set-scene-mode")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	scene := types.SceneResponse{}
	err = c.do(ctx, http.MethodPut, scenePath(moduleID)+"/modo", types.ModeRequest{Mode: mode}, &scene)

	return scene, err
}

func (c *labControlClient) ToggleDeviceFlag(ctx context.Context, moduleID uint, shelfID, rowID string, flag types.DeviceFlag) (types.MutationResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "toggle-device-flag")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	path := fmt.Sprintf("%s/estantes/%s/filas/%s/%s", scenePath(moduleID), url.PathEscape(shelfID), url.PathEscape(rowID), flag)

	result := types.MutationResult{}
	err = c.do(ctx, http.MethodPost, path, nil, &result)

	return result, err
}

func scenePath(moduleID uint) string {
	return "/api/modulos/" + strconv.FormatUint(uint64(moduleID), 10) + "/escena"
}

func (c *labControlClient) do(ctx context.Context, method, path string, body, result any) error {
	log := logging.GetFromContext(ctx)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.Debug().Int("status", resp.StatusCode).Msgf("%s %s failed", method, path)
		return responseError(resp.StatusCode, respBody)
	}

	if result == nil {
		return nil
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}

	return nil
}

func responseError(status int, body []byte) error {
	e := types.ErrorResponse{}
	json.Unmarshal(body, &e)

	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusForbidden:
		sentinel = ErrForbidden
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	default:
		return fmt.Errorf("request failed with status code %d: %s", status, e.Error)
	}

	if e.Error == "" {
		return sentinel
	}

	return fmt.Errorf("%w: %s", sentinel, e.Error)
}
