package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/i474232898/weather-oracle/internal/common"
)

const (
	contractModule = "contract"

	fnCreateOracle = "create_weather_oracle"
	fnUpdateOracle = "update_weather_oracle"

	oracleObjectType     = "::WeatherOracle"
	predictionObjectType = "::UserPrediction"
)

var (
	ErrExecutionFailed  = errors.New("transaction execution failed")
	ErrObjectNotCreated = errors.New("expected object was not created")
	ErrNotConfigured    = errors.New("ledger client is not configured")
)

type Config struct {
	RPCURL    string
	PackageID string
	AdminCap  string
	GasBudget uint64
	// RetryMax bounds transport-level retries per RPC call.
	RetryMax int
}

// Client settles weather oracles on the ledger through the full node JSON-RPC API.
type Client struct {
	cfg    Config
	signer *Signer
	rpc    *rpcTransport
}

func NewClient(cfg Config, signer *Signer, httpClient *http.Client) (*Client, error) {
	if cfg.RPCURL == "" || cfg.PackageID == "" || cfg.AdminCap == "" {
		return nil, fmt.Errorf("%w: rpc url, package id and admin cap are required", ErrNotConfigured)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: missing signer", ErrNotConfigured)
	}
	if cfg.GasBudget == 0 {
		return nil, fmt.Errorf("%w: gas budget must be positive", ErrNotConfigured)
	}
	return &Client{
		cfg:    cfg,
		signer: signer,
		rpc:    newRPCTransport(cfg.RPCURL, httpClient, cfg.RetryMax),
	}, nil
}

// CreateParams are the arguments of create_weather_oracle, in Celsius and ms.
type CreateParams struct {
	CityName    string
	Temperature float64
	TargetTemp  float64
	TargetTime  int64
}

type CreateResult struct {
	OracleID     string
	PredictionID string
	Digest       string
}

// CreateOracle creates a WeatherOracle and its UserPrediction registry.
func (c *Client) CreateOracle(ctx context.Context, p CreateParams) (CreateResult, error) {
	current, err := EncodeTemperature(p.Temperature)
	if err != nil {
		return CreateResult{}, fmt.Errorf("current temperature: %w", err)
	}
	target, err := EncodeTemperature(p.TargetTemp)
	if err != nil {
		return CreateResult{}, fmt.Errorf("target temperature: %w", err)
	}
	if p.TargetTime < 0 {
		return CreateResult{}, fmt.Errorf("target time must not be negative: %d", p.TargetTime)
	}

	effects, err := c.execute(ctx, fnCreateOracle, []interface{}{
		c.cfg.AdminCap,
		p.CityName,
		u64Arg(current),
		u64Arg(target),
		u64Arg(uint64(p.TargetTime)),
	})
	if err != nil {
		return CreateResult{}, err
	}

	oracleID := createdObjectID(effects, oracleObjectType)
	if oracleID == "" {
		return CreateResult{}, fmt.Errorf("%w: WeatherOracle", ErrObjectNotCreated)
	}
	predictionID := createdObjectID(effects, predictionObjectType)
	if predictionID == "" {
		return CreateResult{}, fmt.Errorf("%w: UserPrediction", ErrObjectNotCreated)
	}

	return CreateResult{
		OracleID:     oracleID,
		PredictionID: predictionID,
		Digest:       effects.Get("digest").String(),
	}, nil
}

// UpdateOracle pushes the latest temperature and ended flag for one oracle
// and returns the transaction digest.
func (c *Client) UpdateOracle(ctx context.Context, oracleID string, celsius float64, ended bool) (string, error) {
	temp, err := EncodeTemperature(celsius)
	if err != nil {
		return "", err
	}

	effects, err := c.execute(ctx, fnUpdateOracle, []interface{}{
		c.cfg.AdminCap,
		oracleID,
		u64Arg(temp),
		ended,
	})
	if err != nil {
		return "", err
	}

	log.Ctx(ctx).Debug().
		Str("oracle", oracleID).
		Uint64("temperature_fixed", temp).
		Float64("temperature_onchain", DecodeTemperature(temp)).
		Bool("ended", ended).
		Msg("oracle temperature written")
	return effects.Get("digest").String(), nil
}

// Ping checks that the full node answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.call(ctx, "sui_getLatestCheckpointSequenceNumber")
	return err
}

func (c *Client) Address() string {
	return c.signer.Address()
}

// execute builds, signs and executes a move call against the oracle contract.
func (c *Client) execute(ctx context.Context, function string, args []interface{}) (gjson.Result, error) {
	built, err := c.rpc.call(ctx, "unsafe_moveCall",
		c.signer.Address(),
		c.cfg.PackageID,
		contractModule,
		function,
		[]interface{}{},
		args,
		nil,
		u64Arg(c.cfg.GasBudget),
	)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: build: %w", function, err)
	}
	txBytes := built.Get("txBytes").String()
	if txBytes == "" {
		return gjson.Result{}, fmt.Errorf("%s: build: response has no txBytes", function)
	}

	sig, err := c.signer.SignTransaction(txBytes)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: sign: %w", function, err)
	}

	res, err := c.rpc.call(ctx, "sui_executeTransactionBlock",
		txBytes,
		[]string{sig},
		map[string]bool{"showEffects": true, "showObjectChanges": true},
		"WaitForLocalExecution",
	)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: execute: %w", function, err)
	}

	digest := res.Get("digest").String()
	if status := res.Get("effects.status.status").String(); status != "success" {
		return gjson.Result{}, fmt.Errorf("%s: %w: digest=%s status=%q error=%q",
			function, ErrExecutionFailed, digest, status, res.Get("effects.status.error").String())
	}

	log.Ctx(ctx).Debug().
		Str("function", function).
		Str("digest", digest).
		Msg("transaction executed")
	return res, nil
}

func createdObjectID(res gjson.Result, typeSuffix string) string {
	var id string
	res.Get("objectChanges").ForEach(func(_, change gjson.Result) bool {
		if change.Get("type").String() == "created" &&
			common.HasAny(change.Get("objectType").String(), typeSuffix) {
			id = change.Get("objectId").String()
			return false
		}
		return true
	})
	return id
}
