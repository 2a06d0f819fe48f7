package exchange

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/jpillora/backoff"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/timeframe"
	"github.com/chochsentinel/sentinel/tools/errs"
	"github.com/chochsentinel/sentinel/tools/log"
)

// MarginType selects isolated or cross margining for a leveraged pair.
type MarginType = futures.MarginType

var (
	MarginTypeIsolated MarginType = "ISOLATED"
	MarginTypeCrossed  MarginType = "CROSSED"

	// ErrNoNeedChangeMarginType is Binance's code for "margin type already
	// set to the requested value" — not a real failure.
	ErrNoNeedChangeMarginType int64 = -4046
)

// majorsWhitelist is always included in ListSymbols (if reachable) so the
// scanner keeps covering the most liquid pairs even if a volume filter
// would otherwise exclude a temporarily quiet major.
var majorsWhitelist = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}

// PairOption configures per-pair leverage and margin type at startup.
type PairOption struct {
	Pair       string
	Leverage   int
	MarginType futures.MarginType
}

// BinanceFutures implements exchange.Port plus the order-placement surface
// order.Manager consumes, over the Binance USDT-M futures REST/WS API.
type BinanceFutures struct {
	ctx        context.Context
	client     *futures.Client
	assetsInfo map[string]model.AssetInfo
	aggregator *timeframe.Aggregator
	HeikinAshi bool
	Testnet    bool

	APIKey    string
	APISecret string

	MetadataFetchers []MetadataFetchers
	PairOptions      []PairOption
}

type BinanceFuturesOption func(*BinanceFutures)

func WithFuturesHeikinAshiCandle() BinanceFuturesOption {
	return func(b *BinanceFutures) { b.HeikinAshi = true }
}

func WithFuturesCredentials(key, secret string) BinanceFuturesOption {
	return func(b *BinanceFutures) {
		b.APIKey = key
		b.APISecret = secret
	}
}

func WithFuturesLeverage(pair string, leverage int, marginType MarginType) BinanceFuturesOption {
	return func(b *BinanceFutures) {
		b.PairOptions = append(b.PairOptions, PairOption{
			Pair:       strings.ToUpper(pair),
			Leverage:   leverage,
			MarginType: marginType,
		})
	}
}

// NewBinanceFutures pings the exchange, applies any configured leverage/
// margin-type options, and caches every symbol's trade limits.
func NewBinanceFutures(ctx context.Context, options ...BinanceFuturesOption) (*BinanceFutures, error) {
	binance.WebsocketKeepalive = true

	b := &BinanceFutures{ctx: ctx, aggregator: timeframe.NewAggregator()}
	for _, option := range options {
		option(b)
	}

	b.client = futures.NewClient(b.APIKey, b.APISecret)

	if err := b.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("%w: binance ping failed: %v", errs.ErrTransientIO, err)
	}

	results, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransientIO, err)
	}

	for _, option := range b.PairOptions {
		_, err = b.client.NewChangeLeverageService().Symbol(option.Pair).Leverage(option.Leverage).Do(ctx)
		if err != nil {
			return nil, err
		}
		err = b.client.NewChangeMarginTypeService().Symbol(option.Pair).MarginType(option.MarginType).Do(ctx)
		if err != nil {
			if apiError, ok := err.(*common.APIError); !ok || apiError.Code != ErrNoNeedChangeMarginType {
				return nil, err
			}
		}
	}

	b.assetsInfo = make(map[string]model.AssetInfo)
	for _, info := range results.Symbols {
		tradeLimits := model.AssetInfo{
			BaseAsset:          info.BaseAsset,
			QuoteAsset:         info.QuoteAsset,
			BaseAssetPrecision: info.BaseAssetPrecision,
			QuotePrecision:     info.QuotePrecision,
		}
		for _, filter := range info.Filters {
			typ, ok := filter["filterType"]
			if !ok {
				continue
			}
			if typ == string(binance.SymbolFilterTypeLotSize) {
				tradeLimits.MinQuantity, _ = strconv.ParseFloat(filter["minQty"].(string), 64)
				tradeLimits.MaxQuantity, _ = strconv.ParseFloat(filter["maxQty"].(string), 64)
				tradeLimits.StepSize, _ = strconv.ParseFloat(filter["stepSize"].(string), 64)
			}
			if typ == string(binance.SymbolFilterTypePriceFilter) {
				tradeLimits.MinPrice, _ = strconv.ParseFloat(filter["minPrice"].(string), 64)
				tradeLimits.MaxPrice, _ = strconv.ParseFloat(filter["maxPrice"].(string), 64)
				tradeLimits.TickSize, _ = strconv.ParseFloat(filter["tickSize"].(string), 64)
			}
		}
		b.assetsInfo[info.Symbol] = tradeLimits
	}

	log.Info("[SETUP] Using Binance Futures exchange")
	return b, nil
}

// ListSymbols implements exchange.Port: symbols quoted in quote, sorted by
// 24h quote volume descending, at least min24hVolume, capped at maxCount
// (0 = unlimited), with majorsWhitelist always included when reachable.
func (b *BinanceFutures) ListSymbols(ctx context.Context, quote string, min24hVolume float64, maxCount int) ([]string, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching 24h stats: %v", errs.ErrTransientIO, err)
	}

	type candidate struct {
		symbol string
		volume float64
	}
	candidates := make([]candidate, 0, len(stats))
	seen := make(map[string]bool)
	for _, s := range stats {
		if !strings.HasSuffix(s.Symbol, strings.ToUpper(quote)) {
			continue
		}
		volume, _ := strconv.ParseFloat(s.QuoteVolume, 64)
		if volume < min24hVolume {
			continue
		}
		candidates = append(candidates, candidate{symbol: s.Symbol, volume: volume})
		seen[s.Symbol] = true
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].volume > candidates[j].volume })

	symbols := make([]string, 0, len(candidates)+len(majorsWhitelist))
	for _, major := range majorsWhitelist {
		if !strings.HasSuffix(major, strings.ToUpper(quote)) {
			continue
		}
		if _, ok := b.assetsInfo[major]; !ok {
			continue
		}
		if !seen[major] {
			symbols = append(symbols, major)
			seen[major] = true
		}
	}
	for _, c := range candidates {
		symbols = append(symbols, c.symbol)
	}

	if maxCount > 0 && len(symbols) > maxCount {
		symbols = symbols[:maxCount]
	}
	return symbols, nil
}

// FetchClosedOHLCV implements exchange.Port. Native timeframes hit the
// klines endpoint directly; synthesised timeframes fetch limit*(m/5) base
// 5m candles and aggregate them via timeframe.Aggregator.
func (b *BinanceFutures) FetchClosedOHLCV(ctx context.Context, symbol string, tf timeframe.Timeframe, limit int) ([]model.Candle, error) {
	if tf.IsNative() {
		return b.candlesByLimit(ctx, symbol, string(tf), limit)
	}

	baseBars, err := timeframe.BaseBarsNeeded(tf, limit)
	if err != nil {
		return nil, err
	}
	base, err := b.candlesByLimit(ctx, symbol, "5m", baseBars)
	if err != nil {
		return nil, err
	}
	aggregated, err := b.aggregator.Aggregate(base, tf)
	if err != nil {
		return nil, err
	}
	if len(aggregated) > limit {
		aggregated = aggregated[len(aggregated)-limit:]
	}
	return aggregated, nil
}

func (b *BinanceFutures) candlesByLimit(ctx context.Context, pair, period string, limit int) ([]model.Candle, error) {
	candles := make([]model.Candle, 0, limit)
	ha := model.NewHeikinAshi()

	data, err := b.client.NewKlinesService().
		Symbol(pair).
		Interval(period).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: klines fetch for %s %s: %v", errs.ErrTransientIO, pair, period, err)
	}
	if len(data) == 0 {
		return candles, nil
	}

	for _, d := range data {
		candle := futureCandleFromKline(pair, *d)
		if b.HeikinAshi {
			candle = candle.ToHeikinAshi(ha)
		}
		candles = append(candles, candle)
	}

	// The last entry is always the currently-forming candle; drop it.
	return candles[:len(candles)-1], nil
}

// CandlesByPeriod fetches every candle between start and end for a one-off
// historical download, unlike FetchClosedOHLCV's always-recent, limit-bound
// view used by the live scan loop.
func (b *BinanceFutures) CandlesByPeriod(ctx context.Context, pair, period string, start, end time.Time) ([]model.Candle, error) {
	candles := make([]model.Candle, 0)
	ha := model.NewHeikinAshi()

	data, err := b.client.NewKlinesService().
		Symbol(pair).
		Interval(period).
		StartTime(start.UnixNano() / int64(time.Millisecond)).
		EndTime(end.UnixNano() / int64(time.Millisecond)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: klines fetch for %s %s: %v", errs.ErrTransientIO, pair, period, err)
	}

	for _, d := range data {
		candle := futureCandleFromKline(pair, *d)
		if b.HeikinAshi {
			candle = candle.ToHeikinAshi(ha)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func (b *BinanceFutures) AssetsInfo(pair string) model.AssetInfo {
	return b.assetsInfo[pair]
}

func (b *BinanceFutures) validate(pair string, quantity float64) error {
	info, ok := b.assetsInfo[pair]
	if !ok {
		return ErrInvalidAsset
	}
	if quantity > info.MaxQuantity || quantity < info.MinQuantity {
		return &OrderError{
			Err:      fmt.Errorf("%w: min: %f max: %f", ErrInvalidQuantity, info.MinQuantity, info.MaxQuantity),
			Pair:     pair,
			Quantity: quantity,
		}
	}
	return nil
}

func (b *BinanceFutures) formatPrice(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.TickSize, info.QuotePrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (b *BinanceFutures) formatQuantity(pair string, value float64) string {
	if info, ok := b.assetsInfo[pair]; ok {
		value = common.AmountToLotSize(info.StepSize, info.BaseAssetPrecision, value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// CreateOrderLimit places a GTC limit order — used for both CHoCH entries.
func (b *BinanceFutures) CreateOrderLimit(side model.SideType, pair string, quantity, limit float64) (model.Order, error) {
	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, err
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(pair).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Side(futures.SideType(side)).
		Quantity(b.formatQuantity(pair, quantity)).
		Price(b.formatPrice(pair, limit)).
		Do(b.ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", errs.ErrOrder, err)
	}

	price, err := strconv.ParseFloat(order.Price, 64)
	if err != nil {
		return model.Order{}, err
	}
	quantity, err = strconv.ParseFloat(order.OrigQuantity, 64)
	if err != nil {
		return model.Order{}, err
	}

	return model.Order{
		ExchangeID: order.OrderID,
		CreatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Pair:       pair,
		Side:       model.SideType(order.Side),
		Type:       model.OrderType(order.Type),
		Status:     model.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}, nil
}

// CreateOrderMarket places an immediately-executing market order — used for
// forced closes of a prior position ahead of a new opposing signal.
func (b *BinanceFutures) CreateOrderMarket(side model.SideType, pair string, quantity float64) (model.Order, error) {
	if err := b.validate(pair, quantity); err != nil {
		return model.Order{}, err
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(pair).
		Type(futures.OrderTypeMarket).
		Side(futures.SideType(side)).
		Quantity(b.formatQuantity(pair, quantity)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(b.ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", errs.ErrOrder, err)
	}

	cost, err := strconv.ParseFloat(order.CumQuote, 64)
	if err != nil {
		return model.Order{}, err
	}
	quantity, err = strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return model.Order{}, err
	}

	price := 0.0
	if quantity != 0 {
		price = cost / quantity
	}

	return model.Order{
		ExchangeID: order.OrderID,
		CreatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Pair:       order.Symbol,
		Side:       model.SideType(order.Side),
		Type:       model.OrderType(order.Type),
		Status:     model.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}, nil
}

// CreateReduceOnlyOrder places a close-position take-profit or stop-loss
// order, the futures equivalent of the spot OCO pair the teacher never
// implemented (CreateOrderOCO there is a stub).
func (b *BinanceFutures) CreateReduceOnlyOrder(pair string, side model.SideType, role model.OrderRole, triggerPrice float64) (model.Order, error) {
	orderType := futures.OrderTypeTakeProfitMarket
	if role == model.OrderRoleStopLoss {
		orderType = futures.OrderTypeStopMarket
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(pair).
		Type(orderType).
		Side(futures.SideType(side)).
		StopPrice(b.formatPrice(pair, triggerPrice)).
		ClosePosition(true).
		Do(b.ctx)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", errs.ErrOrder, err)
	}

	return model.Order{
		ExchangeID: order.OrderID,
		CreatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Pair:       pair,
		Side:       model.SideType(order.Side),
		Type:       model.OrderType(order.Type),
		Status:     model.OrderStatusType(order.Status),
		Price:      triggerPrice,
		Role:       role,
		ReduceOnly: true,
	}, nil
}

func (b *BinanceFutures) Cancel(order model.Order) error {
	_, err := b.client.NewCancelOrderService().
		Symbol(order.Pair).
		OrderID(order.ExchangeID).
		Do(b.ctx)
	return err
}

func (b *BinanceFutures) Order(pair string, id int64) (model.Order, error) {
	order, err := b.client.NewGetOrderService().
		Symbol(pair).
		OrderID(id).
		Do(b.ctx)
	if err != nil {
		return model.Order{}, err
	}
	return newFutureOrder(order), nil
}

func newFutureOrder(order *futures.Order) model.Order {
	var (
		price float64
		err   error
	)

	cost, _ := strconv.ParseFloat(order.CumQuote, 64)
	quantity, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)

	if cost > 0 && quantity > 0 {
		price = cost / quantity
	} else {
		price, err = strconv.ParseFloat(order.Price, 64)
		log.CheckErr(log.WarnLevel, err)
		quantity, err = strconv.ParseFloat(order.OrigQuantity, 64)
		log.CheckErr(log.WarnLevel, err)
	}

	return model.Order{
		ExchangeID: order.OrderID,
		Pair:       order.Symbol,
		CreatedAt:  time.Unix(0, order.Time*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Side:       model.SideType(order.Side),
		Type:       model.OrderType(order.Type),
		Status:     model.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}
}

// Account returns every non-zero position and wallet balance.
func (b *BinanceFutures) Account() (model.Account, error) {
	acc, err := b.client.NewGetAccountService().Do(b.ctx)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: %v", errs.ErrTransientIO, err)
	}

	balances := make([]model.Balance, 0)
	for _, position := range acc.Positions {
		free, err := strconv.ParseFloat(position.PositionAmt, 64)
		if err != nil {
			return model.Account{}, err
		}
		if free == 0 {
			continue
		}

		leverage, err := strconv.ParseFloat(position.Leverage, 64)
		if err != nil {
			return model.Account{}, err
		}

		if position.PositionSide == futures.PositionSideTypeShort {
			free = -free
		}

		asset, _ := SplitAssetQuote(position.Symbol)
		balances = append(balances, model.Balance{Asset: asset, Free: free, Leverage: leverage})
	}

	for _, asset := range acc.Assets {
		free, err := strconv.ParseFloat(asset.WalletBalance, 64)
		if err != nil {
			return model.Account{}, err
		}
		if free == 0 {
			continue
		}
		balances = append(balances, model.Balance{Asset: asset.Asset, Free: free})
	}

	return model.Account{Balances: balances}, nil
}

// Position returns the free+locked balance of a pair's base and quote
// assets.
func (b *BinanceFutures) Position(pair string) (asset, quote float64, err error) {
	assetTick, quoteTick := SplitAssetQuote(pair)

	acc, err := b.Account()
	if err != nil {
		return 0, 0, err
	}

	assetBalance, quoteBalance := acc.Balance(assetTick, quoteTick)
	return assetBalance.Free + assetBalance.Lock, quoteBalance.Free + quoteBalance.Lock, nil
}

// CandlesSubscription streams every kline update over a websocket (Complete
// marks the final update of a candle), reconnecting
// with exponential backoff on any disconnect.
func (b *BinanceFutures) CandlesSubscription(ctx context.Context, pair, period string) (chan model.Candle, chan error) {
	ccandle := make(chan model.Candle)
	cerr := make(chan error)
	ha := model.NewHeikinAshi()

	go func() {
		ba := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 1 * time.Second}

		for {
			done, _, err := futures.WsKlineServe(pair, period, func(event *futures.WsKlineEvent) {
				ba.Reset()
				candle := futureCandleFromWsKline(pair, event.Kline)

				if candle.Complete && b.HeikinAshi {
					candle = candle.ToHeikinAshi(ha)
				}
				if candle.Complete {
					for _, fetcher := range b.MetadataFetchers {
						key, value := fetcher(pair, candle.Time)
						candle.Metadata[key] = value
					}
				}
				ccandle <- candle
			}, func(err error) {
				cerr <- err
			})

			if err != nil {
				cerr <- err
				close(cerr)
				close(ccandle)
				return
			}

			select {
			case <-ctx.Done():
				close(cerr)
				close(ccandle)
				return
			case <-done:
				time.Sleep(ba.Duration())
			}
		}
	}()

	return ccandle, cerr
}

func futureCandleFromKline(pair string, k futures.Kline) model.Candle {
	openTime := time.Unix(0, k.OpenTime*int64(time.Millisecond))
	closeTime := time.Unix(0, k.CloseTime*int64(time.Millisecond))
	candle := model.Candle{Pair: pair, Time: openTime, CloseTime: closeTime, UpdatedAt: closeTime}

	var err error
	candle.Open, err = strconv.ParseFloat(k.Open, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Close, err = strconv.ParseFloat(k.Close, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.High, err = strconv.ParseFloat(k.High, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Low, err = strconv.ParseFloat(k.Low, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Volume, err = strconv.ParseFloat(k.Volume, 64)
	log.CheckErr(log.WarnLevel, err)

	candle.Complete = true
	candle.Metadata = make(map[string]float64)
	return candle
}

func futureCandleFromWsKline(pair string, k futures.WsKline) model.Candle {
	var err error
	openTime := time.Unix(0, k.StartTime*int64(time.Millisecond))
	closeTime := time.Unix(0, k.EndTime*int64(time.Millisecond))
	candle := model.Candle{Pair: pair, Time: openTime, CloseTime: closeTime, UpdatedAt: closeTime}

	candle.Open, err = strconv.ParseFloat(k.Open, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Close, err = strconv.ParseFloat(k.Close, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.High, err = strconv.ParseFloat(k.High, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Low, err = strconv.ParseFloat(k.Low, 64)
	log.CheckErr(log.WarnLevel, err)
	candle.Volume, err = strconv.ParseFloat(k.Volume, 64)
	log.CheckErr(log.WarnLevel, err)

	candle.Complete = k.IsFinal
	candle.Metadata = make(map[string]float64)
	return candle
}
