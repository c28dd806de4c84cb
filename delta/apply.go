package delta

import (
	"github.com/hupe1980/kvquery/cache"
)

// Apply performs the mutation described by r on c.
func Apply(c *cache.KeyValueCache, r Record) error {
	switch r.Type {
	case UpdateKeyValue:
		c.UpdateKeyValue(r.Key, r.Value, r.CommitTime)
	case DeleteKey:
		c.DeleteKey(r.Key, r.CommitTime)
	case UpdateValueSet:
		c.UpdateKeyValueSet(r.Key, r.Values, r.CommitTime)
	case DeleteValuesInSet:
		c.DeleteValuesInSet(r.Key, r.Values, r.CommitTime)
	case UpdateUInt32ValueSet:
		c.UpdateUInt32ValueSet(r.Key, r.UInt32Values, r.CommitTime)
	case DeleteUInt32ValuesInSet:
		c.DeleteUInt32ValuesInSet(r.Key, r.UInt32Values, r.CommitTime)
	default:
		return r.Validate()
	}
	return nil
}

// ApplyAll applies records in order and returns the number applied.
func ApplyAll(c *cache.KeyValueCache, records []Record) (int, error) {
	for i, r := range records {
		if err := Apply(c, r); err != nil {
			return i, err
		}
	}
	return len(records), nil
}
