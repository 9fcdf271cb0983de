package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/leapstack-labs/sqlfence/internal/cli/testutil"
	"github.com/spf13/cobra"

	// Register adapters used by test projects.
	_ "github.com/leapstack-labs/sqlfence/pkg/adapters/sqlite"
)

var (
	peopleSchema    = testutil.PeopleSchema
	setupProject    = testutil.SetupTestProject
	createPeopleDB  = testutil.CreatePeopleDB
	fakeModel       = testutil.FakeModel
	generatorConfig = testutil.GeneratorConfig
)

// runCommand executes cmd with args and returns what it wrote.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	testutil.AssertNoANSI(t, out.String()+errOut.String())
	return out.String(), errOut.String(), err
}
