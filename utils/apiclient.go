package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/incognitochain/etn-bridge/entities"
)

// HttpClient talks to the bridge query API of a running service
type HttpClient struct {
	client *resty.Client
	url    string
}

// NewHttpClient to get http client instance
func NewHttpClient(url string) *HttpClient {
	return &HttpClient{
		client: resty.New().SetTimeout(60 * time.Second),
		url:    strings.TrimSuffix(url, "/"),
	}
}

func (c *HttpClient) GetURL() string {
	return c.url
}

// Get calls GET path and decodes the body into res. Non-2xx responses are
// returned as errors carrying the API error message.
func (c *HttpClient) Get(path string, params map[string]string, res interface{}) error {
	response, err := c.client.R().
		SetQueryParams(params).
		Get(c.url + path)
	if err != nil {
		return err
	}
	if response.IsError() {
		var base entities.APIBaseRes
		if err := json.Unmarshal(response.Body(), &base); err == nil && base.Error != nil {
			return fmt.Errorf("Request status code: %v - Error %v", response.StatusCode(), base.Error.Message)
		}
		return fmt.Errorf("Request status code: %v", response.StatusCode())
	}
	if err := json.Unmarshal(response.Body(), res); err != nil {
		return fmt.Errorf("Could not parse response: %v", response.String())
	}
	return nil
}

func (c *HttpClient) GetStats() (*entities.StatsResult, error) {
	var res entities.StatsRes
	if err := c.Get("/api/v1/stats", nil, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

func (c *HttpClient) GetAccount(address string) (*entities.AccountResult, error) {
	var res entities.AccountRes
	if err := c.Get("/api/v1/accounts/"+address, nil, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

func (c *HttpClient) GetLegacy(legacy string) (*entities.LegacyResult, error) {
	var res entities.LegacyRes
	if err := c.Get("/api/v1/legacy/"+legacy, nil, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

func (c *HttpClient) GetTx(txHash string) (*entities.TxResult, error) {
	var res entities.TxRes
	if err := c.Get("/api/v1/tx/"+txHash, nil, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}

func (c *HttpClient) GetEvents(from uint64, limit int) ([]*entities.EventResult, error) {
	var res entities.EventsRes
	params := map[string]string{
		"from":  fmt.Sprint(from),
		"limit": fmt.Sprint(limit),
	}
	if err := c.Get("/api/v1/events", params, &res); err != nil {
		return nil, err
	}
	return res.Result, nil
}
