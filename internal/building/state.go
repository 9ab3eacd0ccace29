package building

// StateField identifies which tracked value of a building changed.
type StateField uint8

const (
	FieldLevelIndex StateField = iota
	FieldCurrentExp
	FieldExpToNext
	FieldMaxPopulation
	FieldCurrentPopulation
	FieldCurrentWorkers
	FieldMaxStorageCapacity
	FieldTransportAbility
	FieldTransportResistance
	FieldJobAttractiveness
	FieldProducts
	FieldTraffic
)

var fieldNames = [...]string{
	FieldLevelIndex:          "LevelIndex",
	FieldCurrentExp:          "CurrentExp",
	FieldExpToNext:           "ExpToNext",
	FieldMaxPopulation:       "MaxPopulation",
	FieldCurrentPopulation:   "CurrentPopulation",
	FieldCurrentWorkers:      "CurrentWorkers",
	FieldMaxStorageCapacity:  "MaxStorageCapacity",
	FieldTransportAbility:    "TransportAbility",
	FieldTransportResistance: "TransportResistance",
	FieldJobAttractiveness:   "JobAttractiveness",
	FieldProducts:            "Products",
	FieldTraffic:             "Traffic",
}

// String returns the field name.
func (f StateField) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "Unknown"
}

// StateObserver is told about every tracked change of a building.
type StateObserver func(b *Building, field StateField)

type observerEntry struct {
	id int
	fn StateObserver
}

// Subscribe registers an observer. Observers fire in subscription order.
// The returned function removes it; removal during a notification applies
// from the next notification.
func (b *Building) Subscribe(fn StateObserver) func() {
	b.nextObserver++
	id := b.nextObserver
	b.observers = append(b.observers, observerEntry{id: id, fn: fn})
	return func() {
		for i, e := range b.observers {
			if e.id == id {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

func (b *Building) notify(field StateField) {
	if len(b.observers) == 0 {
		return
	}
	snapshot := make([]observerEntry, len(b.observers))
	copy(snapshot, b.observers)
	for _, e := range snapshot {
		e.fn(b, field)
	}
}
