package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// Client talks to the catalog and pricing service.
type Client interface {
	GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type offeringResponse struct {
	Data *entities.Offering `json:"data"`
}

func NewClient(baseURL string) *HTTPClient {
	trimmed := strings.TrimRight(baseURL, "/")
	return &HTTPClient{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetOffering fetches the offering for serviceRef at location. A catalog 404
// means the service is unknown and comes back as a NotFound error.
func (c *HTTPClient) GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error) {
	if strings.TrimSpace(serviceRef) == "" {
		return nil, apperrors.NewValidationError("service reference is required")
	}

	parsed, err := url.Parse(fmt.Sprintf("%s/offerings/%s", c.baseURL, url.PathEscape(serviceRef)))
	if err != nil {
		return nil, err
	}
	query := parsed.Query()
	if location != "" {
		query.Set("location", location)
	}
	parsed.RawQuery = query.Encode()

	var out offeringResponse
	if err := c.doJSON(ctx, http.MethodGet, parsed.String(), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, apperrors.NewExternalError("catalog returned an empty offering", nil)
	}
	if out.Data.ServiceRef == "" {
		out.Data.ServiceRef = serviceRef
	}
	return out.Data, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.NewExternalError("catalog request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError("service not found in catalog")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewExternalError(fmt.Sprintf("catalog api returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError("decode catalog response", err)
	}

	return nil
}
