package domain

import "encoding/json"

// knownPlatformOSKeys are the scalar/slice fields of a platform_values.<os>
// block; every other key names a platform family (manylinux, musllinux, ...).
var knownPlatformOSKeys = map[string]bool{
	"arches": true, "specific": true, "specific_only": true, "excludes": true,
}

// DecodeCompatibilitySpec builds a CompatibilitySpec from the raw
// map[string]any produced by decoding a project's [compatibility_spec] table
// (TOML or otherwise). Unrecognized keys under platform_values.<os> are
// treated as family blocks (e.g. manylinux = {min = "2.17", max = "*"}),
// matching the flattened shape authors write by hand rather than requiring
// an explicit "families" wrapper.
func DecodeCompatibilitySpec(raw map[string]any) (*CompatibilitySpec, error) {
	spec := &CompatibilitySpec{}

	if pv, ok := raw["python_versions"]; ok {
		if err := decodeJSONRoundTrip(pv, &spec.PythonVersions); err != nil {
			return nil, err
		}

		if m, ok := pv.(map[string]any); ok {
			if _, explicit := m["accept_universal"]; !explicit {
				spec.PythonVersions.AcceptUniversal = true
			}
		} else {
			spec.PythonVersions.AcceptUniversal = true
		}
	}

	if abi, ok := raw["abi_values"]; ok {
		if err := decodeJSONRoundTrip(abi, &spec.ABI); err != nil {
			return nil, err
		}
	}

	if plats, ok := raw["platform_values"].(map[string]any); ok {
		decoded := make(map[string]PlatformOSSpec, len(plats))

		for osName, osRaw := range plats {
			osMap, ok := osRaw.(map[string]any)
			if !ok {
				continue
			}

			osSpec, err := decodePlatformOSSpec(osMap)
			if err != nil {
				return nil, err
			}

			decoded[osName] = osSpec
		}

		spec.Platforms = decoded
	}

	if profiles, ok := raw["tag_profiles"].(map[string]any); ok {
		decoded := make(map[string]CompatibilityTagsSpec, len(profiles))

		for name, profRaw := range profiles {
			var prof CompatibilityTagsSpec
			if err := decodeJSONRoundTrip(profRaw, &prof); err != nil {
				return nil, err
			}

			decoded[name] = prof
		}

		spec.TagProfiles = decoded
	}

	return spec, nil
}

func decodePlatformOSSpec(osMap map[string]any) (PlatformOSSpec, error) {
	var spec PlatformOSSpec

	known := make(map[string]any, len(knownPlatformOSKeys))
	families := make(map[string]PlatformFamilySpec)

	for k, v := range osMap {
		if knownPlatformOSKeys[k] {
			known[k] = v

			continue
		}

		var fam PlatformFamilySpec
		if err := decodeJSONRoundTrip(v, &fam); err != nil {
			return PlatformOSSpec{}, err
		}

		families[k] = fam
	}

	if err := decodeJSONRoundTrip(known, &spec); err != nil {
		return PlatformOSSpec{}, err
	}

	if len(families) > 0 {
		spec.Families = families
	}

	return spec, nil
}

func decodeJSONRoundTrip(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dst)
}
