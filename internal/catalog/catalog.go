package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/errs"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/pkg/breaker"
)

type Config struct {
	Host string `envconfig:"CATALOG_HTTP_HOST" default:"localhost"`
	Port string `envconfig:"CATALOG_HTTP_PORT" default:"8090"`
}

// Client talks to the Resource Catalog service, which owns parking
// resource CRUD and the approval workflow.
type Client struct {
	log    *zap.Logger
	client *http.Client
	cb     breaker.Breaker
	cfg    Config
}

func NewClient(log *zap.Logger, cfg Config) *Client {
	return &Client{
		log:    log.Named("catalog"),
		client: &http.Client{Timeout: time.Minute},
		cb:     breaker.New(20, 10*time.Second, 0.5, 3),
		cfg:    cfg,
	}
}

func (c *Client) GetResource(ctx context.Context, resourceID string) (model.Resource, error) {
	var (
		res    model.Resource
		getErr error
	)
	err := c.cb.Call(func() error {
		res, getErr = c.getResource(ctx, resourceID)
		if errors.Is(getErr, errs.ErrResourceNotFound) {
			// a 404 is an answer, not a downstream failure
			return nil
		}
		return getErr
	})
	if err != nil {
		return model.Resource{}, err
	}
	return res, getErr
}

func (c *Client) getResource(ctx context.Context, resourceID string) (model.Resource, error) {
	url := fmt.Sprintf("http://%s/api/v1/resources/%s",
		net.JoinHostPort(c.cfg.Host, c.cfg.Port), resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return model.Resource{}, err
	}
	req.Header.Set("Content-Type", echo.MIMEApplicationJSONCharsetUTF8)
	resp, err := c.client.Do(req)
	if err != nil {
		return model.Resource{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Resource{}, errs.ErrResourceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return model.Resource{}, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}
	var res model.Resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return model.Resource{}, err
	}
	return res, nil
}
