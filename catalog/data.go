package catalog

func DefaultBrands() []Brand {
	return []Brand{
		{
			Key:             "aston",
			Name:            "ASTON",
			Description:     "Flagship brand of Archipelago International, launched in 1997. Diverse portfolio from luxury 5-star Grand ASTON to mid-range ASTON hotels.",
			Positioning:     "Full-service hotels",
			PropertiesCount: "50+",
			TargetMarket:    "Business and leisure travelers",
		},
		{
			Key:             "huxley",
			Name:            "Huxley",
			Description:     "Ultra-chic and sophisticated brand for discerning travelers seeking modern luxury and contemporary design.",
			Positioning:     "Luxury lifestyle",
			PropertiesCount: "15+",
			TargetMarket:    "Premium travelers",
		},
		{
			Key:             "alana",
			Name:            "ALANA",
			Description:     "Premium brand offering refined hospitality experiences with elegant accommodations and world-class facilities.",
			Positioning:     "Premium hospitality",
			PropertiesCount: "20+",
			TargetMarket:    "Upscale leisure travelers",
		},
		{
			Key:             "kamuela",
			Name:            "Kamuela",
			Description:     "Upscale resort properties with distinctive charm and personalized service across Southeast Asia.",
			Positioning:     "Resort hospitality",
			PropertiesCount: "12+",
			TargetMarket:    "Resort and leisure guests",
		},
		{
			Key:             "favehotel",
			Name:            "FAVE Hotel",
			Description:     "Lifestyle brand offering vibrant, youthful hospitality experiences with trendy design.",
			Positioning:     "Lifestyle budget",
			PropertiesCount: "30+",
			TargetMarket:    "Young travelers and backpackers",
		},
	}
}

func DefaultHotels() []Hotel {
	return []Hotel{
		{
			Code:      "aston_jakarta",
			Name:      "ASTON Madiun",
			Location:  "Jakarta, Indonesia",
			Brand:     "ASTON",
			Rooms:     156,
			Amenities: []string{"Fitness Center", "Swimming Pool", "Business Center", "Restaurant", "Bar"},
		},
		{
			Code:      "aston_bali",
			Name:      "ASTON Denpasar Hotel & Convention Center",
			Location:  "Bali, Indonesia",
			Brand:     "ASTON",
			Rooms:     217,
			Amenities: []string{"Fitness Center", "Swimming Pool", "Conference Halls", "Restaurant", "Spa"},
		},
		{
			Code:      "huxley_jakarta",
			Name:      "Huxley Jakarta",
			Location:  "Jakarta, Indonesia",
			Brand:     "Huxley",
			Rooms:     89,
			Amenities: []string{"Boutique Design", "Rooftop Bar", "Fitness Center", "Business Lounge"},
		},
		{
			Code:      "alana_jakarta",
			Name:      "ALANA Jakarta Hotel",
			Location:  "Jakarta, Indonesia",
			Brand:     "ALANA",
			Rooms:     172,
			Amenities: []string{"Premium Pool", "Fine Dining", "Spa", "Business Center", "Fitness Center"},
		},
	}
}
