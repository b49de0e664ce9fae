// Package validator checks users and products against their owning services.
// Each collaborator sits behind its own circuit breaker.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/fjod/go_cart/shopping-cart/pkg/circuitbreaker"
	"github.com/fjod/go_cart/shopping-cart/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	UserServiceName    = "userService"
	ProductServiceName = "productService"

	maxBodySize = 1 << 20
)

var errEmptyBody = errors.New("empty response body")

type Config struct {
	UserServiceURL    string
	ProductServiceURL string
	Breaker           circuitbreaker.Config
}

type productResponse struct {
	ID                 int64           `json:"id"`
	ProductName        string          `json:"productName"`
	ProductDescription string          `json:"productDescription"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
}

type Validator struct {
	client     *http.Client
	userURL    string
	productURL string
	users      *circuitbreaker.Breaker[struct{}]
	products   *circuitbreaker.Breaker[domain.ValidatedProduct]
	log        *zap.Logger
}

// New builds a Validator. onStateChange may be nil; it is called on every
// breaker transition of either collaborator.
func New(cfg Config, client *http.Client, log *zap.Logger, onStateChange func(name string, from, to circuitbreaker.State)) *Validator {
	opts := []circuitbreaker.Option{
		circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if onStateChange != nil {
				onStateChange(name, from, to)
			}
		}),
	}

	userCfg := cfg.Breaker
	userCfg.Name = UserServiceName
	productCfg := cfg.Breaker
	productCfg.Name = ProductServiceName

	return &Validator{
		client:     client,
		userURL:    cfg.UserServiceURL,
		productURL: cfg.ProductServiceURL,
		users:      circuitbreaker.New[struct{}](userCfg, opts...),
		products:   circuitbreaker.New[domain.ValidatedProduct](productCfg, opts...),
		log:        log,
	}
}

// ValidateUser succeeds when the user service knows username.
func (v *Validator) ValidateUser(ctx context.Context, username, credential string) error {
	if credential == "" {
		return domain.ErrAuthMissing
	}

	_, err := v.users.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := v.get(ctx, v.userURL, username, credential)
		return struct{}{}, err
	}, func(cause error) (struct{}, error) {
		logger.FromContext(ctx, v.log).Error("User service is down, fallback executed",
			zap.String("breaker", v.users.Name()),
			zap.String("username", username),
			zap.Error(cause))
		return struct{}{}, &domain.UnavailableError{Service: "User service", NotFound: domain.ErrUserNotFound, Cause: cause}
	})
	return err
}

// ValidateProduct returns the catalog's price and stock for productName.
func (v *Validator) ValidateProduct(ctx context.Context, productName, credential string) (domain.ValidatedProduct, error) {
	if credential == "" {
		return domain.ValidatedProduct{}, domain.ErrAuthMissing
	}

	product, err := v.products.Execute(ctx, func(ctx context.Context) (domain.ValidatedProduct, error) {
		body, err := v.get(ctx, v.productURL, productName, credential)
		if err != nil {
			return domain.ValidatedProduct{}, err
		}
		var resp productResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return domain.ValidatedProduct{}, fmt.Errorf("decode product response: %w", err)
		}
		name := resp.ProductName
		if name == "" {
			name = productName
		}
		return domain.ValidatedProduct{Name: name, Price: resp.Price, StockQuantity: resp.Quantity}, nil
	}, func(cause error) (domain.ValidatedProduct, error) {
		logger.FromContext(ctx, v.log).Error("Product service is down, fallback executed",
			zap.String("breaker", v.products.Name()),
			zap.String("product", productName),
			zap.Error(cause))
		return domain.ValidatedProduct{}, &domain.UnavailableError{Service: "Product service", NotFound: domain.ErrProductNotFound, Cause: cause}
	})
	return product, err
}

// BreakerStates reports the current state of each collaborator's breaker.
func (v *Validator) BreakerStates() map[string]circuitbreaker.State {
	return map[string]circuitbreaker.State{
		UserServiceName:    v.users.State(),
		ProductServiceName: v.products.State(),
	}
}

// get fetches base/name. Any non-2xx status and an empty or null body are
// failures, so an unknown name is reported through the fallback.
func (v *Validator) get(ctx context.Context, base, name, credential string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("call %s: unexpected status %d", base, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, fmt.Errorf("call %s: %w", base, errEmptyBody)
	}
	return body, nil
}
