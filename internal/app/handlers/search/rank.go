package search

import (
	"math"
	"sort"

	domainhotels "roomledger/internal/domain/hotels"
	"roomledger/internal/domain/shared/money"
)

const (
	weightDistance = 0.4
	weightRating   = 0.3
	weightPrice    = 0.3
	earthRadiusKM  = 6371.0
)

type point struct {
	lat, lon float64
}

type hit struct {
	candidate domainhotels.Candidate
	total     money.Money
}

type ranked struct {
	hit
	distance *float64
	score    float64
}

// rank scores hits (lower is better) and sorts them, ties broken by room type
// id. Distance and price are min-max normalized over hits; without an origin
// the distance term is zero.
func rank(hits []hit, from *point) []ranked {
	out := make([]ranked, len(hits))
	dists := make([]float64, len(hits))
	prices := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = ranked{hit: h}
		if from != nil {
			loc := h.candidate.Hotel.Location
			d := haversine(*from, point{lat: loc.Lat, lon: loc.Lon})
			out[i].distance = &d
			dists[i] = d
		}
		prices[i] = float64(h.total.Amount)
	}
	for i := range out {
		rating := math.Min(math.Max(out[i].candidate.Hotel.Rating, 0), 5)
		score := weightRating*(1-rating/5) + weightPrice*normalize(prices, i)
		if from != nil {
			score += weightDistance * normalize(dists, i)
		}
		out[i].score = math.Round(score*1e6) / 1e6
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		return out[i].candidate.RoomType.ID < out[j].candidate.RoomType.ID
	})
	return out
}

func normalize(values []float64, i int) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo == 0 {
		return 0
	}
	return (values[i] - lo) / (hi - lo)
}

func haversine(a, b point) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(b.lat - a.lat)
	dLon := rad(b.lon - a.lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.lat))*math.Cos(rad(b.lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
