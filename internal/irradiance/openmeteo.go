package irradiance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/mathutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

const (
	archivePath    = "/v1/archive"
	dailyVariable  = "shortwave_radiation_sum"
	openMeteoName  = "open-meteo"
	maxBodyBytes   = 4 << 20
	archiveDateFmt = "2006-01-02"
)

// OpenMeteoOptions configures the archive client.
type OpenMeteoOptions struct {
	BaseURL    string
	Years      []int
	Timezone   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// OpenMeteo queries the Open-Meteo historical archive for daily shortwave
// radiation sums and annualizes them.
type OpenMeteo struct {
	baseURL  string
	years    []int
	timezone string
	client   *http.Client
	logger   *zap.Logger
}

// NewOpenMeteo builds a client, filling unset options with defaults.
func NewOpenMeteo(opts OpenMeteoOptions) *OpenMeteo {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = constants.DefaultIrradianceBaseURL
	}

	years := append([]int(nil), opts.Years...)
	if len(years) == 0 {
		years = []int{constants.DefaultIrradianceYear}
	}

	timezone := opts.Timezone
	if timezone == "" {
		timezone = constants.DefaultTimezone
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = constants.DefaultIrradianceTimeout * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenMeteo{
		baseURL:  baseURL,
		years:    years,
		timezone: timezone,
		client:   client,
		logger:   logger,
	}
}

type archiveResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Daily  struct {
		Time                  []string   `json:"time"`
		ShortwaveRadiationSum []*float64 `json:"shortwave_radiation_sum"`
	} `json:"daily"`
}

type yearTotal struct {
	kWh  float64
	days int
}

// AnnualIrradiation fetches every configured year concurrently and returns
// the mean annual irradiation in kWh/m². Any failed year makes the whole
// reading unavailable.
func (c *OpenMeteo) AnnualIrradiation(ctx context.Context, loc Location) (Reading, error) {
	if err := loc.Validate(); err != nil {
		return Reading{}, err
	}

	totals := make([]yearTotal, len(c.years))
	g, gctx := errgroup.WithContext(ctx)
	for i, year := range c.years {
		i, year := i, year
		g.Go(func() error {
			total, err := c.fetchYear(gctx, loc, year)
			if err != nil {
				return err
			}
			totals[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("irradiance lookup failed",
			zap.String("op", "irradiance.AnnualIrradiation"),
			zap.Stringer("location", loc),
			zap.Error(err),
		)
		return Reading{}, err
	}

	annual := make([]float64, len(totals))
	days := 0
	for i, total := range totals {
		annual[i] = total.kWh
		days += total.days
	}
	mean := floats.Sum(annual) / float64(len(annual))

	c.logger.Debug("irradiance lookup succeeded",
		zap.String("op", "irradiance.AnnualIrradiation"),
		zap.Stringer("location", loc),
		zap.Ints("years", c.years),
		zap.Float64("kWhPerM2", mean),
	)

	return Reading{
		Location: loc,
		KWhPerM2: mean,
		Years:    append([]int(nil), c.years...),
		Days:     days,
		Source:   openMeteoName,
	}, nil
}

func (c *OpenMeteo) archiveURL(loc Location, year int) string {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("start_date", start.Format(archiveDateFmt))
	params.Set("end_date", end.Format(archiveDateFmt))
	params.Set("daily", dailyVariable)
	params.Set("timezone", c.timezone)

	return c.baseURL + archivePath + "?" + params.Encode()
}

func (c *OpenMeteo) fetchYear(ctx context.Context, loc Location, year int) (yearTotal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.archiveURL(loc, year), nil)
	if err != nil {
		return yearTotal{}, unavailable("failed to build archive request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return yearTotal{}, unavailable(fmt.Sprintf("archive request for %d failed", year), err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close archive response",
				zap.String("op", "irradiance.fetchYear"),
				zap.Error(closeErr),
			)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return yearTotal{}, unavailable("failed to read archive response", err)
	}

	var payload archiveResponse
	decodeErr := json.Unmarshal(body, &payload)

	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("archive returned status %d", resp.StatusCode)
		if decodeErr == nil && payload.Reason != "" {
			reason += ": " + payload.Reason
		}
		return yearTotal{}, unavailable(reason, nil)
	}
	if decodeErr != nil {
		return yearTotal{}, unavailable("malformed archive response", decodeErr)
	}
	if payload.Error {
		return yearTotal{}, unavailable("archive reported an error: "+payload.Reason, nil)
	}

	return dailyTotal(payload.Daily.ShortwaveRadiationSum, year)
}

// dailyTotal converts daily MJ/m² sums into one annual kWh/m² figure. A
// missing or invalid day makes the year unavailable rather than silently
// lowering the total.
func dailyTotal(values []*float64, year int) (yearTotal, error) {
	if len(values) == 0 {
		return yearTotal{}, unavailable(fmt.Sprintf("archive returned no daily values for %d", year), nil)
	}

	daily := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			return yearTotal{}, unavailable(fmt.Sprintf("archive is missing day %d of %d", i+1, year), nil)
		}
		if !mathutil.IsFinite(*v) || *v < 0 {
			return yearTotal{}, unavailable(fmt.Sprintf("archive returned invalid value %g for day %d of %d", *v, i+1, year), nil)
		}
		daily[i] = *v
	}

	floats.Scale(constants.MJToKWh, daily)
	return yearTotal{kWh: floats.Sum(daily), days: len(daily)}, nil
}
