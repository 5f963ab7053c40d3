package entity

// Typed attribute accessors. Each entity domain carries its own attribute
// shape (a light has brightness, a thermostat has target temperature), all
// stored in the generic attribute map. These helpers tolerate missing keys
// and wrong types; the second return value reports presence.
//
// JSON numbers decode as float64, so numeric accessors accept float64 and
// convert where an integer is conventional.

// attrFloat extracts a numeric attribute.
func (e *Entity) attrFloat(key string) (float64, bool) {
	v, ok := e.Attributes[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// attrString extracts a string attribute.
func (e *Entity) attrString(key string) (string, bool) {
	s, ok := e.Attributes[key].(string)
	return s, ok && s != ""
}

// Brightness returns a light's brightness (0-255).
func (e *Entity) Brightness() (int, bool) {
	f, ok := e.attrFloat("brightness")
	return int(f), ok
}

// Temperature returns a climate entity's target temperature.
func (e *Entity) Temperature() (float64, bool) {
	return e.attrFloat("temperature")
}

// CurrentTemperature returns a climate entity's measured temperature.
func (e *Entity) CurrentTemperature() (float64, bool) {
	return e.attrFloat("current_temperature")
}

// HVACMode returns a climate entity's active HVAC mode
// ("off", "heat", "cool", "heat_cool", "auto", "dry", "fan_only").
func (e *Entity) HVACMode() (string, bool) {
	return e.attrString("hvac_mode")
}

// Room returns the room/area assignment used for room grouping.
func (e *Entity) Room() (string, bool) {
	if room, ok := e.attrString("room"); ok {
		return room, true
	}
	return e.attrString("area")
}

// DeviceClass returns the hub's device class refinement of the domain
// (e.g. a binary_sensor with device_class "door").
func (e *Entity) DeviceClass() (string, bool) {
	return e.attrString("device_class")
}

// UnitOfMeasurement returns the display unit for numeric states.
func (e *Entity) UnitOfMeasurement() (string, bool) {
	return e.attrString("unit_of_measurement")
}
