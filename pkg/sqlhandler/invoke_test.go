package sqlhandler

import (
	"testing"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

func TestBindParametersEmitsLiteralDefaultToken(t *testing.T) {
	decl := []endpoint.TVFParameter{
		{Name: "year", Source: endpoint.ParamSourcePath, Position: 1, SQLType: "int", Required: true},
		{Name: "region", Source: endpoint.ParamSourceQuery, Key: "region", SQLType: "string", Default: "DEFAULT"},
	}
	bound, err := bindParameters(decl, ParamValues{"year": "2024"})
	if err != nil {
		t.Fatalf("bindParameters: %v", err)
	}
	placeholders, args := renderBoundArgs(bound)
	if placeholders[0] != "$1" || args[0] != int64(2024) {
		t.Errorf("placeholders[0]/args[0] = %v/%v, want $1/2024", placeholders[0], args[0])
	}
	if placeholders[1] != "DEFAULT" {
		t.Errorf("placeholders[1] = %q, want the literal DEFAULT token", placeholders[1])
	}
	if len(args) != 1 {
		t.Errorf("args = %v, want only the bound year value (DEFAULT consumes no slot)", args)
	}
}

func TestBindParametersUsesValueDefaultWhenNotDefaultToken(t *testing.T) {
	decl := []endpoint.TVFParameter{
		{Name: "region", Source: endpoint.ParamSourceQuery, Key: "region", SQLType: "string", Default: "EMEA"},
	}
	bound, err := bindParameters(decl, ParamValues{})
	if err != nil {
		t.Fatalf("bindParameters: %v", err)
	}
	placeholders, args := renderBoundArgs(bound)
	if placeholders[0] != "$1" || args[0] != "EMEA" {
		t.Errorf("placeholders[0]/args[0] = %v/%v, want $1/EMEA", placeholders[0], args[0])
	}
}

func TestBindParametersRejectsMissingRequired(t *testing.T) {
	decl := []endpoint.TVFParameter{
		{Name: "year", Source: endpoint.ParamSourcePath, Position: 1, SQLType: "int", Required: true},
	}
	_, err := bindParameters(decl, ParamValues{})
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.BadRequest {
		t.Fatalf("bindParameters(missing required) = %v, want BadRequest", err)
	}
}
