package telemetry

// SessionRecord is one row of a recorded session. Sensor fields are optional;
// a missing field produces a gap in that field's chart series only.
//
// The classification may arrive as either prediction (rows logged from live
// predictions) or label (rows imported from labelled training data).
type SessionRecord struct {
	AccX       *float64 `json:"acc_x"`
	AccY       *float64 `json:"acc_y"`
	AccZ       *float64 `json:"acc_z"`
	GyroX      *float64 `json:"gyro_x"`
	GyroY      *float64 `json:"gyro_y"`
	GyroZ      *float64 `json:"gyro_z"`
	HeartRate  *float64 `json:"heart_rate"`
	SpO2       *float64 `json:"spo2"`
	Prediction string   `json:"prediction,omitempty"`
	Label      string   `json:"label,omitempty"`
}

// Session is an ordered sequence of records in recording order.
type Session []SessionRecord

// Class returns the record's classification, preferring prediction over
// label. Records with neither are unclassified.
func (r SessionRecord) Class() (string, bool) {
	if r.Prediction != "" {
		return r.Prediction, true
	}
	if r.Label != "" {
		return r.Label, true
	}
	return "", false
}

// Field returns the named sensor field, or nil when it is missing.
func (r SessionRecord) Field(name string) *float64 {
	switch name {
	case FieldAccX:
		return r.AccX
	case FieldAccY:
		return r.AccY
	case FieldAccZ:
		return r.AccZ
	case FieldGyroX:
		return r.GyroX
	case FieldGyroY:
		return r.GyroY
	case FieldGyroZ:
		return r.GyroZ
	case FieldHeartRate:
		return r.HeartRate
	case FieldSpO2:
		return r.SpO2
	}
	return nil
}

// RecordFromReading builds a complete session record for a classified
// reading.
func RecordFromReading(r SensorReading, prediction string) SessionRecord {
	return SessionRecord{
		AccX:       Float(r.AccX),
		AccY:       Float(r.AccY),
		AccZ:       Float(r.AccZ),
		GyroX:      Float(r.GyroX),
		GyroY:      Float(r.GyroY),
		GyroZ:      Float(r.GyroZ),
		HeartRate:  Float(r.HeartRate),
		SpO2:       Float(r.SpO2),
		Prediction: prediction,
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
