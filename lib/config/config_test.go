// config_test.go tests config files
package config

import (
	"testing"
)

// fileToTest is a relative path to the configuration file to test (ie. tds/cmd/conf.json)
var fileToTest string = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded.
func TestConfig(t *testing.T) {
	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Fatalf("Error reading config file: %v", err)
	}
	// lets check the port
	if conf.Port != "3001" {
		t.Errorf("config port is not the expected %s", conf.Port)
	}
	// and the network endpoints
	if len(conf.Nodes) != 3 {
		t.Fatalf("network endpoints do not match the expected %v", conf.Nodes)
	}

	if conf.Nodes[0].URL != "https://eth-sepolia.public.blastapi.io" ||
		conf.Nodes[1].URL != "https://rpc2.sepolia.org" ||
		conf.Nodes[2].URL != "https://rpc.sepolia.org" {
		t.Errorf("network endpoints do not match the expected %v", conf.Nodes)
	}

	if conf.Nodes[0].Timeout != 30 {
		t.Errorf("endpoint timeout is not the expected %d", conf.Nodes[0].Timeout)
	}
	// contract addresses
	if conf.Token != "0x37BC77fc80E85E7B76Ee59dEd861D0e40E9c58d5" {
		t.Errorf("token contract is not the expected %s", conf.Token)
	}

	if conf.Owner != "0x7D0441d822E347c3f900248c5a943680E1c3B2a9" {
		t.Errorf("owner address is not the expected %s", conf.Owner)
	}
}

// TestEnvOverride checks that TDS_* OS ENV variables take precedence over file values.
func TestEnvOverride(t *testing.T) {
	t.Setenv("TDS_PORT", "4001")
	t.Setenv("TDS_OWNER", "0x0000000000000000000000000000000000000001")
	t.Setenv("TDS_NODES", `[{"url":"http://localhost:8545","timeout":5}]`)

	conf, err := ExtractConfiguration(fileToTest)
	if err != nil {
		t.Fatalf("Error reading config file: %v", err)
	}

	if conf.Port != "4001" {
		t.Errorf("env override of port failed: %s", conf.Port)
	}

	if conf.Owner != "0x0000000000000000000000000000000000000001" {
		t.Errorf("env override of owner failed: %s", conf.Owner)
	}

	if len(conf.Nodes) != 1 || conf.Nodes[0].URL != "http://localhost:8545" || conf.Nodes[0].Timeout != 5 {
		t.Errorf("env override of nodes failed: %v", conf.Nodes)
	}
}
