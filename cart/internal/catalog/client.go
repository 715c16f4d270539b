package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopnest/cart/cart/internal/store"
	inErrors "github.com/shopnest/cart/internal/errors"
	inHttp "github.com/shopnest/cart/internal/http"
	"github.com/shopnest/cart/internal/log"
	"github.com/shopnest/cart/internal/otel"
)

// Client resolves product details from the catalog service when the add-item
// request carries only a product id.
type Client struct {
	baseUrl string
}

func NewClient(baseUrl string) *Client {
	if baseUrl == "" {
		return nil
	}
	return &Client{baseUrl: baseUrl}
}

type productPayload struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
}

func (t *Client) FindProductById(c context.Context, id string) (store.Product, error) {
	c, span := otel.Tracer.Start(c, "Client FindProductById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Client FindProductById").
		Str(log.KeyProductID, id).
		Str(log.KeyProcess, "finding product in catalog").
		Logger()

	logger.Info().Msgf("finding product by productId=%s", id)
	req, err := http.NewRequestWithContext(c, http.MethodGet, t.baseUrl+"/"+id, nil)
	if err != nil {
		err = fmt.Errorf("failed creating catalog request with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return store.Product{}, err
	}
	req.Header.Add(inHttp.KeyHeaderRequestID, log.RequestIDFromContext(c))

	resp, err := otelhttp.DefaultClient.Do(req)
	if err != nil {
		err = fmt.Errorf(
			"failed finding product by productId=%s with error=%w: %w",
			id,
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return store.Product{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("productId=%s: %w", id, inErrors.ErrInvalidProduct)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return store.Product{}, err
	}

	respBody := struct {
		Data struct {
			Product productPayload `json:"product"`
		} `json:"data"`
	}{}
	err = json.NewDecoder(resp.Body).Decode(&respBody)
	if err != nil {
		err = fmt.Errorf("failed decoding catalog response with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return store.Product{}, err
	}
	logger.Info().Msgf("found product by productId=%s", id)

	product := respBody.Data.Product
	return store.Product{
		ID:        product.ID,
		Title:     product.Title,
		UnitPrice: product.Price,
		Thumbnail: product.Thumbnail,
	}, nil
}
