package deploy

import (
	"github.com/fleetship/fleetship/internal/core/compose"
)

// Reconcile merges the builder's output with synthetic skip records so
// that the result covers every declared service exactly once, in
// descriptor order.
//
// A descriptor that was scheduled for building but has no builder
// record, or a builder record for an undeclared service, is an
// internal-consistency failure and aborts the deploy.
func Reconcile(descriptors []compose.ServiceDescriptor, built map[string]ImageRecord, skipped []string) ([]ImageRecord, error) {
	skippedSet := make(map[string]bool, len(skipped))
	for _, name := range skipped {
		skippedSet[name] = true
	}

	declared := make(map[string]bool, len(descriptors))
	records := make([]ImageRecord, 0, len(descriptors))

	for _, desc := range descriptors {
		declared[desc.ServiceName] = true

		if rec, ok := built[desc.ServiceName]; ok {
			if rec.Name == "" {
				rec.Name = desc.Image.Reference()
			}
			records = append(records, rec)
			continue
		}

		if !skippedSet[desc.ServiceName] {
			return nil, NewError("reconcile", "", "service "+desc.ServiceName+" has no build result", ErrMissingRecord)
		}

		records = append(records, ImageRecord{
			ServiceName: desc.ServiceName,
			Name:        desc.Image.Reference(),
			Logs:        SkipLogs,
			Props:       map[string]string{},
		})
	}

	for name := range built {
		if !declared[name] {
			return nil, NewError("reconcile", "", "builder returned record for unknown service "+name, ErrUnknownService)
		}
	}

	return records, nil
}
