package page

import (
	"bytes"
	"strings"
	"testing"
)

const contractPage = `<!doctype html>
<html>
  <head><title>Rx</title></head>
  <body>
    <button id="openStream">Open stream</button>
    <textarea id="presc">Amoxicillin 500 mg three times daily for 7 days.</textarea>
    <button id="parseBtn">Parse</button>
    <pre id="out">previous <b>result</b></pre>
  </body>
</html>`

func TestLoad_CheckContract(t *testing.T) {
	p, err := Load(strings.NewReader(contractPage))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Check(); err != nil {
		t.Fatalf("expected complete contract, got %v", err)
	}
}

func TestCheck_ReportsMissing(t *testing.T) {
	p, err := Load(strings.NewReader(`<html><body><textarea id="presc"></textarea></body></html>`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = p.Check()
	if err == nil {
		t.Fatalf("expected missing elements error")
	}
	for _, id := range []string{"openStream", "parseBtn", "out"} {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("error %q should name %s", err, id)
		}
	}
	if strings.Contains(err.Error(), "presc") {
		t.Fatalf("presc is present; error %q should not name it", err)
	}
}

func TestValue_TextareaAndInput(t *testing.T) {
	p, _ := Load(strings.NewReader(contractPage))
	if got := p.Value(); got != "Amoxicillin 500 mg three times daily for 7 days." {
		t.Fatalf("textarea value=%q", got)
	}
	p2, _ := Load(strings.NewReader(`<html><body><input id="presc" value="  Ibuprofen 200mg  "></body></html>`))
	if got := p2.Value(); got != "  Ibuprofen 200mg  " {
		t.Fatalf("input value must be returned unmodified, got %q", got)
	}
}

func TestSetText_OverwritesAndEscapes(t *testing.T) {
	p, _ := Load(strings.NewReader(contractPage))
	p.SetText("first")
	p.SetText("Drug: A <b>\nDosage: 5 mg")
	if got := p.Text(); got != "Drug: A <b>\nDosage: 5 mg" {
		t.Fatalf("output text=%q", got)
	}
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "previous") || strings.Contains(out, "first") {
		t.Fatalf("output must be overwritten, got %s", out)
	}
	if !strings.Contains(out, "Drug: A &lt;b&gt;") {
		t.Fatalf("text must be escaped on render, got %s", out)
	}
}
