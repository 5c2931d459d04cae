package dto

type SearchItem struct {
	HotelID      string   `json:"hotel_id"`
	HotelName    string   `json:"hotel_name"`
	RoomTypeID   string   `json:"room_type_id"`
	RoomTypeName string   `json:"room_type_name"`
	City         string   `json:"city"`
	Country      string   `json:"country"`
	Rating       float64  `json:"rating"`
	DistanceKM   *float64 `json:"distance_km,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	MaxOccupancy int      `json:"max_occupancy"`
	Total        MoneyDTO `json:"total"`
	Score        float64  `json:"score"`
}

type SearchResult struct {
	Items []SearchItem `json:"items"`
	Total int          `json:"total"`
}
