package descriptor

import "testing"

func TestParseField(t *testing.T) {
	tests := []struct {
		desc string
		want Type
	}{
		{"I", Type{Kind: Int}},
		{"J", Type{Kind: Long}},
		{"Z", Type{Kind: Boolean}},
		{"Ljava/lang/String;", Type{Kind: Object, ClassName: "java/lang/String"}},
		{"[I", Type{Kind: Array, Elem: &Type{Kind: Int}}},
		{"[[Ljava/lang/Object;", Type{Kind: Array, Elem: &Type{Kind: Array, Elem: &Type{Kind: Object, ClassName: "java/lang/Object"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseField(tt.desc)
			if err != nil {
				t.Fatalf("ParseField(%q): unexpected error: %v", tt.desc, err)
			}
			if got.String() != tt.want.String() {
				t.Errorf("ParseField(%q): got %q, want %q", tt.desc, got.String(), tt.want.String())
			}
		})
	}
}

func TestParseFieldErrors(t *testing.T) {
	tests := []string{
		"",
		"Q",
		"Ljava/lang/String",
		"II",
	}
	for _, desc := range tests {
		t.Run(desc, func(t *testing.T) {
			if _, err := ParseField(desc); err == nil {
				t.Errorf("ParseField(%q): got nil error, want non-nil", desc)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("(ILjava/lang/String;)Z")
	if err != nil {
		t.Fatalf("ParseMethod: unexpected error: %v", err)
	}
	if len(m.Params) != 2 {
		t.Fatalf("Params: got %d, want 2", len(m.Params))
	}
	if m.Params[0].Kind != Int {
		t.Errorf("Params[0].Kind: got %v, want Int", m.Params[0].Kind)
	}
	if m.Params[1].Kind != Object || m.Params[1].ClassName != "java/lang/String" {
		t.Errorf("Params[1]: got %+v, want Object java/lang/String", m.Params[1])
	}
	if m.Return.Kind != Boolean {
		t.Errorf("Return.Kind: got %v, want Boolean", m.Return.Kind)
	}
	if m.String() != "(ILjava/lang/String;)Z" {
		t.Errorf("String(): got %q, want %q", m.String(), "(ILjava/lang/String;)Z")
	}
}

func TestParseMethodNoArgs(t *testing.T) {
	m, err := ParseMethod("()V")
	if err != nil {
		t.Fatalf("ParseMethod: unexpected error: %v", err)
	}
	if len(m.Params) != 0 {
		t.Errorf("Params: got %d, want 0", len(m.Params))
	}
	if m.Return.Kind != Void {
		t.Errorf("Return.Kind: got %v, want Void", m.Return.Kind)
	}
}

func TestParseMethodErrors(t *testing.T) {
	tests := []string{
		"ILjava/lang/String;)Z",
		"(I",
		"(I)",
	}
	for _, desc := range tests {
		t.Run(desc, func(t *testing.T) {
			if _, err := ParseMethod(desc); err == nil {
				t.Errorf("ParseMethod(%q): got nil error, want non-nil", desc)
			}
		})
	}
}

func TestParamSlotCount(t *testing.T) {
	tests := []struct {
		desc string
		want int
	}{
		{"()V", 0},
		{"(I)V", 1},
		{"(JD)V", 4},
		{"(Ljava/lang/String;IJ)V", 4},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParamSlotCount(tt.desc)
			if err != nil {
				t.Fatalf("ParamSlotCount(%q): unexpected error: %v", tt.desc, err)
			}
			if got != tt.want {
				t.Errorf("ParamSlotCount(%q): got %d, want %d", tt.desc, got, tt.want)
			}
		})
	}
}

func TestIsReference(t *testing.T) {
	tests := []struct {
		name string
		t    Type
		want bool
	}{
		{"Int", Type{Kind: Int}, false},
		{"Object", Type{Kind: Object, ClassName: "java/lang/Object"}, true},
		{"Array", Type{Kind: Array, Elem: &Type{Kind: Int}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.IsReference(); got != tt.want {
				t.Errorf("IsReference(): got %v, want %v", got, tt.want)
			}
		})
	}
}
