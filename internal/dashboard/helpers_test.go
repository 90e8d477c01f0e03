package dashboard

import (
	"errors"
	"time"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
)

var day1 = time.Date(2025, time.April, 18, 0, 0, 0, 0, time.UTC)

func reading(at time.Time, temp float64) models.Reading {
	return models.Reading{
		Timestamp:   models.NewTimestamp(at.Unix()),
		FarmID:      "farm-1",
		Temperature: models.NewNumber(temp),
		Humidity:    models.NewNumber(temp * 2),
		WaterLevel:  models.NewNumber(temp * 3),
		LightLevel:  models.NewNumber(temp * 4),
		ProductID:   "p-1",
	}
}

// twoDayReadings returns three readings on day1 and two on the next day
func twoDayReadings() []models.Reading {
	return []models.Reading{
		reading(day1.Add(8*time.Hour), 20),
		reading(day1.Add(24*time.Hour+9*time.Hour), 24),
		reading(day1.Add(12*time.Hour), 21),
		reading(day1.Add(20*time.Hour), 22),
		reading(day1.Add(24*time.Hour+15*time.Hour), 25),
	}
}

type recordingTable struct {
	views []TableView
	err   error
}

func (r *recordingTable) RenderTable(view TableView) error {
	r.views = append(r.views, view)
	return r.err
}

func (r *recordingTable) last() TableView {
	if len(r.views) == 0 {
		return TableView{}
	}
	return r.views[len(r.views)-1]
}

type fakeCanvas struct {
	resets   int
	messages []string
}

func (c *fakeCanvas) Size() (int, int) { return 800, 400 }
func (c *fakeCanvas) Reset() { c.resets++ }
func (c *fakeCanvas) DrawMessage(text string, _ RGBA) error {
	c.messages = append(c.messages, text)
	return nil
}

type fakeChart struct {
	cfg       ChartConfig
	destroyed bool
}

func (c *fakeChart) Destroy() { c.destroyed = true }

type fakeFactory struct {
	created []*fakeChart
	// failures is how many New calls fail before one succeeds; -1 fails all
	failures int
}

func (f *fakeFactory) New(_ Canvas, cfg ChartConfig) (Chart, error) {
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return nil, errors.New("chart construction failed")
	}
	c := &fakeChart{cfg: cfg}
	f.created = append(f.created, c)
	return c, nil
}

func (f *fakeFactory) last() *fakeChart {
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

func timestamps(rows []models.Reading) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i], _ = r.Timestamp.Seconds()
	}
	return out
}
