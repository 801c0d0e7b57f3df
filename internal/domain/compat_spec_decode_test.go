package domain

import "testing"

func TestDecodeCompatibilitySpecPythonVersionsDefaultsAcceptUniversal(t *testing.T) {
	raw := map[string]any{
		"python_versions": map[string]any{"min": "3.9", "max": "<3.13"},
	}

	spec, err := DecodeCompatibilitySpec(raw)
	if err != nil {
		t.Fatalf("DecodeCompatibilitySpec: %v", err)
	}

	if !spec.PythonVersions.AcceptUniversal {
		t.Fatal("expected accept_universal to default true when absent")
	}

	if spec.PythonVersions.Min != "3.9" || spec.PythonVersions.Max != "<3.13" {
		t.Fatalf("unexpected python versions spec: %+v", spec.PythonVersions)
	}
}

func TestDecodeCompatibilitySpecRespectsExplicitAcceptUniversalFalse(t *testing.T) {
	raw := map[string]any{
		"python_versions": map[string]any{"min": "3.9", "accept_universal": false},
	}

	spec, err := DecodeCompatibilitySpec(raw)
	if err != nil {
		t.Fatalf("DecodeCompatibilitySpec: %v", err)
	}

	if spec.PythonVersions.AcceptUniversal {
		t.Fatal("expected accept_universal to stay false when explicitly set")
	}
}

func TestDecodeCompatibilitySpecFlattenedPlatformFamilies(t *testing.T) {
	raw := map[string]any{
		"platform_values": map[string]any{
			"linux": map[string]any{
				"arches":    []any{"x86_64"},
				"manylinux": map[string]any{"min": "2.17", "max": "*"},
			},
		},
	}

	spec, err := DecodeCompatibilitySpec(raw)
	if err != nil {
		t.Fatalf("DecodeCompatibilitySpec: %v", err)
	}

	linux, ok := spec.Platforms["linux"]
	if !ok {
		t.Fatal("expected linux platform block")
	}

	if len(linux.Arches) != 1 || linux.Arches[0] != "x86_64" {
		t.Fatalf("unexpected arches: %v", linux.Arches)
	}

	fam, ok := linux.Families["manylinux"]
	if !ok {
		t.Fatal("expected manylinux family block")
	}

	if fam.Min != "2.17" || fam.Max != "*" {
		t.Fatalf("unexpected manylinux family: %+v", fam)
	}
}

func TestDecodeCompatibilitySpecTagProfiles(t *testing.T) {
	raw := map[string]any{
		"tag_profiles": map[string]any{
			"strict": map[string]any{"specific": []any{"cp311-cp311-manylinux_2_17_x86_64"}, "specific_only": true},
		},
	}

	spec, err := DecodeCompatibilitySpec(raw)
	if err != nil {
		t.Fatalf("DecodeCompatibilitySpec: %v", err)
	}

	prof, ok := spec.TagProfiles["strict"]
	if !ok || !prof.SpecificOnly || len(prof.Specific) != 1 {
		t.Fatalf("unexpected tag profile: %+v", prof)
	}
}
