package agentdeploy

import "embed"

//go:embed embedded-agents
var embeddedAgents embed.FS

// getEmbeddedAgent returns the bytes of the agent binary embedded for
// os-arch at build time, if a release build staged one. Development
// checkouts carry only the README placeholder, so this returns ok=false
// for every platform until a release pipeline populates embedded-agents/.
func getEmbeddedAgent(os, arch string) ([]byte, bool) {
	path := "embedded-agents/" + os + "-" + arch + "/" + remoteAgentName
	data, err := embeddedAgents.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}
