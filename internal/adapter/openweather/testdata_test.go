package openweather

// forecastJSON is a trimmed /forecast response: nine slots across two UTC
// days. The first eight carry 38.5 mm of rain in total; the ninth falls
// outside the 24 h window.
const forecastJSON = `{
  "cod": "200",
  "list": [
    {"dt": 1741946400, "main": {"temp": 24.1, "temp_min": 23.5, "temp_max": 24.1, "humidity": 88}, "weather": [{"description": "moderate rain"}], "wind": {"speed": 3.4}, "rain": {"3h": 4.5}},
    {"dt": 1741957200, "main": {"temp": 23.0, "temp_min": 22.8, "temp_max": 23.0, "humidity": 91}, "weather": [{"description": "heavy intensity rain"}], "wind": {"speed": 4.1}, "rain": {"3h": 12.0}},
    {"dt": 1741968000, "main": {"temp": 22.0, "temp_min": 21.7, "temp_max": 22.0, "humidity": 94}, "weather": [{"description": "heavy intensity rain"}], "wind": {"speed": 5.0}, "rain": {"3h": 10.0}},
    {"dt": 1741978800, "main": {"temp": 21.2, "temp_min": 21.0, "temp_max": 21.2, "humidity": 95}, "weather": [{"description": "light rain"}], "wind": {"speed": 3.0}, "rain": {"3h": 2.0}},
    {"dt": 1741989600, "main": {"temp": 20.5, "temp_min": 20.5, "temp_max": 20.9, "humidity": 96}, "weather": [{"description": "overcast clouds"}], "wind": {"speed": 2.2}},
    {"dt": 1742000400, "main": {"temp": 20.1, "temp_min": 20.1, "temp_max": 20.4, "humidity": 96}, "weather": [{"description": "light rain"}], "wind": {"speed": 2.0}, "rain": {"3h": 3.0}},
    {"dt": 1742011200, "main": {"temp": 22.3, "temp_min": 22.0, "temp_max": 22.3, "humidity": 90}, "weather": [{"description": "moderate rain"}], "wind": {"speed": 2.8}, "rain": {"3h": 7.0}},
    {"dt": 1742022000, "main": {"temp": 25.0, "temp_min": 24.6, "temp_max": 25.0, "humidity": 82}, "weather": [{"description": "scattered clouds"}], "wind": {"speed": 3.1}},
    {"dt": 1742032800, "main": {"temp": 26.2, "temp_min": 26.0, "temp_max": 26.2, "humidity": 78}, "weather": [{"description": "light rain"}], "wind": {"speed": 3.6}, "rain": {"3h": 9.0}}
  ]
}`
