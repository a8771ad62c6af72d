package deploy

import "fmt"

// ValidateCapabilities gates the deploy on the fleet's declared
// release protocol before any probe, build, or network call:
//
//   - a legacy fleet accepts exactly one service;
//   - a modern fleet with more than one service must support
//     multi-container releases.
func ValidateCapabilities(serviceCount int, caps TargetCapabilities) error {
	if caps.IsLegacy && serviceCount > 1 {
		return NewError("validate", "",
			fmt.Sprintf("fleet uses the legacy single-image protocol but the project declares %d services", serviceCount),
			ErrLegacySingleService)
	}
	if !caps.IsLegacy && serviceCount > 1 && !caps.SupportsMulticontainer {
		return NewError("validate", "",
			fmt.Sprintf("project declares %d services but the fleet does not support multi-container releases", serviceCount),
			ErrMulticontainerNotSupported)
	}
	return nil
}

// SelectStrategy picks the release protocol once per deploy from the
// fleet's capabilities. The choice is explicit and injected; it is
// never resolved dynamically at release time.
func SelectStrategy(caps TargetCapabilities, legacy, modern ReleaseStrategy) ReleaseStrategy {
	if caps.IsLegacy {
		return legacy
	}
	return modern
}
