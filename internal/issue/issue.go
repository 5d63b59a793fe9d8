// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog page.
type Id int

const (
	StepConfigInvalidId Id = iota + 1
	CredentialNotFoundId
	EnvironmentNotFoundId
	ContainerEngineNotFoundId
	ImagePullFailedId
	LoginFailedId
	TestRunFailedId
	TestRunTimedOutId
	SettingsLoadFailedId
	WorkspaceLockedId
)

type (
	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the page as terminal Markdown with the given glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(style string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), style)
}

var (
	render = glamour.Render

	stepConfigInvalidIssue = &Issue{
		id: StepConfigInvalidId,
		mdMsg: `
# The test-run step is misconfigured

Nothing was launched. Each mode has its own required fields:

| Mode | Required |
|---|---|
| test-plan | ` + "`--test-plan`, `--target-url`" + ` |
| app-name | ` + "`--app-name`, `--env`" + ` |
| remote-test-run | ` + "`--app-name`, `--env`, `--data-source`, `--run-on`, `--target-url`" + ` |

## Things you can try:
- Check the step without running it:
~~~
$ levo-ci validate --print-command
~~~
- ` + "`--test-plan`" + ` and ` + "`--app-name`" + ` are mutually exclusive
- Endpoint patterns must be valid regular expressions`,
		docLinks: []HttpLink{"https://docs.levo.ai/integrations/ci-cd"},
	}

	credentialNotFoundIssue = &Issue{
		id: CredentialNotFoundId,
		mdMsg: `
# Levo credentials not found

The credential id given with ` + "`--credentials-id`" + ` did not resolve to a Levo CLI record.

## Things you can try:
- Add a record to your credentials file:
~~~yaml
credentials:
  - id: levo-prod
    type: levo-cli
    organizationId: "<your org id>"
    authorizationKey: "<your CLI key>"
~~~
- Or export ` + "`LEVO_CREDENTIALS_<ID>_ORGANIZATION_ID`" + ` and ` + "`LEVO_CREDENTIALS_<ID>_AUTHORIZATION_KEY`",
		docLinks: []HttpLink{"https://docs.levo.ai/integrations/common-tasks#generating-cli-authorization-keys"},
	}

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Environment secret not found

The id given with ` + "`--environment-secret-id`" + ` is neither a secret text nor a secret file.

## Things you can try:
- Add a ` + "`secret-text`" + ` or ` + "`secret-file`" + ` record with that id
- Drop the flag if the test run does not need an environment file`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available

levo-ci runs the Levo CLI from the ` + "`levoai/levo`" + ` image and needs Docker or Podman.

## Things you can try:
- Install Docker or Podman on the build agent
- Select the engine explicitly in ` + "`config.cue`" + `:
~~~cue
container_engine: "podman"
~~~`,
	}

	imagePullFailedIssue = &Issue{
		id: ImagePullFailedId,
		mdMsg: `
# Could not pull the Levo CLI image

The pull failed and no cached copy of the image is present.

## Things you can try:
- Check the agent's network access to the registry
- Pre-pull the image on the agent:
~~~
$ docker pull levoai/levo:stable
~~~`,
	}

	loginFailedIssue = &Issue{
		id: LoginFailedId,
		mdMsg: `
# Levo login failed

The test run was not attempted.

## Things you can try:
- Regenerate the CLI authorization key in the Levo dashboard
- Check that the organization id matches the key
- Check ` + "`baseUrl`" + ` if you are not on the default Levo SaaS endpoint`,
		docLinks: []HttpLink{"https://docs.levo.ai/integrations/common-tasks#generating-cli-authorization-keys"},
	}

	testRunFailedIssue = &Issue{
		id: TestRunFailedId,
		mdMsg: `
# The Levo test run failed

The Levo CLI exited with a non-zero code. Failing tests also produce a non-zero code.

## Things you can try:
- Read the streamed output above for failing test cases
- Enable the JUnit report with ` + "`--junit`" + ` and inspect ` + "`levo-reports/junit.xml`",
	}

	testRunTimedOutIssue = &Issue{
		id: TestRunTimedOutId,
		mdMsg: `
# The Levo test run timed out

The run exceeded its timeout and was interrupted. Credentials were still cleaned up.

## Things you can try:
- Raise the long timeout in ` + "`config.cue`" + `:
~~~cue
timeouts: long: "1h"
~~~
- Narrow the run with ` + "`--categories`" + ` or ` + "`--endpoint-pattern`",
	}

	settingsLoadFailedIssue = &Issue{
		id: SettingsLoadFailedId,
		mdMsg: `
# Could not load levo-ci settings

## Things you can try:
- Show where the settings file is expected:
~~~
$ levo-ci config path
~~~
- Write a fresh default file:
~~~
$ levo-ci config init --force
~~~`,
	}

	workspaceLockedIssue = &Issue{
		id: WorkspaceLockedId,
		mdMsg: `
# Workspace is busy

Another levo-ci run holds the lock on this workspace.

## Things you can try:
- Give concurrent jobs separate workspaces
- Or set ` + "`workspace: isolate_credentials: true`" + ` and ` + "`workspace: lock: false`",
	}

	issues = map[Id]*Issue{
		stepConfigInvalidIssue.Id():       stepConfigInvalidIssue,
		credentialNotFoundIssue.Id():      credentialNotFoundIssue,
		environmentNotFoundIssue.Id():     environmentNotFoundIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imagePullFailedIssue.Id():         imagePullFailedIssue,
		loginFailedIssue.Id():             loginFailedIssue,
		testRunFailedIssue.Id():           testRunFailedIssue,
		testRunTimedOutIssue.Id():         testRunTimedOutIssue,
		settingsLoadFailedIssue.Id():      settingsLoadFailedIssue,
		workspaceLockedIssue.Id():         workspaceLockedIssue,
	}
)

// Values returns every catalog page ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

// Get returns the page for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
