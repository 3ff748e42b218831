package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/axdbertuol/authz"
	"github.com/axdbertuol/authz/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("authz-config - Configuration tool for authz")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  authz-config convert <input> <output>  - Convert between formats")
	fmt.Println("  authz-config validate <file>           - Validate configuration")
	fmt.Println("  authz-config stats <file>              - Show configuration statistics")
	fmt.Println("  authz-config apply <file>              - Apply configuration to an in-memory engine")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: authz-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-config validate <file>")
		os.Exit(1)
	}

	// loadConfig already runs Config.Validate
	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Permissions: %d\n", len(cfg.Permissions))
	fmt.Printf("  Roles: %d\n", len(cfg.Roles))
	fmt.Printf("  Policies: %d\n", len(cfg.Policies))
	fmt.Printf("  Areas: %d\n", len(cfg.Areas))
	fmt.Printf("  Functions: %d\n", len(cfg.Functions))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Permissions: %d\n", len(cfg.Permissions))
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Grants:      %d\n", len(cfg.RolePermissions))
	fmt.Printf("  Memberships: %d\n", len(cfg.Memberships))
	fmt.Printf("  Policies:    %d\n", len(cfg.Policies))
	fmt.Printf("  Areas:       %d\n", len(cfg.Areas))
	fmt.Printf("  Functions:   %d\n", len(cfg.Functions))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Println()

	if len(cfg.Policies) > 0 {
		allowCount := 0
		denyCount := 0
		for _, p := range cfg.Policies {
			if p.Effect == authz.EffectAllow {
				allowCount++
			} else {
				denyCount++
			}
		}
		fmt.Println("Policy Details:")
		fmt.Printf("  Allow policies: %d\n", allowCount)
		fmt.Printf("  Deny policies:  %d\n", denyCount)
		fmt.Println()
	}

	if len(cfg.Functions) > 0 {
		totalPerms := 0
		for _, f := range cfg.Functions {
			totalPerms += len(f.Permissions)
		}
		fmt.Println("Function Details:")
		fmt.Printf("  Total permissions: %d\n", totalPerms)
		fmt.Printf("  Avg per function:  %.1f\n", float64(totalPerms)/float64(len(cfg.Functions)))
		fmt.Println()
	}

	roleParents := 0
	for _, r := range cfg.Roles {
		if r.ParentRoleID != "" {
			roleParents++
		}
	}
	areaParents := 0
	for _, a := range cfg.Areas {
		if a.ParentAreaID != "" {
			areaParents++
		}
	}
	if roleParents > 0 || areaParents > 0 {
		fmt.Println("Hierarchy:")
		fmt.Printf("  Roles with a parent: %d\n", roleParents)
		fmt.Printf("  Areas with a parent: %d\n", areaParents)
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Decision cache TTL:     %dms\n", cfg.Engine.DecisionCacheTTLMillis)
	fmt.Printf("  Decision cache entries: %d\n", cfg.Engine.DecisionCacheEntries)
	fmt.Printf("  Audit buffer size:      %d\n", cfg.Engine.AuditBufferSize)
	fmt.Printf("  Batch worker count:     %d\n", cfg.Engine.BatchWorkerCount)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authz-config apply <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	engine, err := authz.NewEngine(authz.Stores{
		Permissions: stores.NewMemoryPermissionStore(),
		Roles:       stores.NewMemoryRoleStore(),
		Memberships: stores.NewMemoryRoleMembershipStore(),
		Policies:    stores.NewMemoryPolicyStore(),
		Resources:   stores.NewMemoryResourceStore(),
		Areas:       stores.NewMemoryAreaStore(),
		Functions:   stores.NewMemoryFunctionStore(),
		Assignments: stores.NewMemoryAssignmentStore(),
		Audit:       stores.NewMemoryAuditStore(),
	})
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := engine.ApplyConfig(context.Background(), cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Roles loaded: %d\n", len(cfg.Roles))
	fmt.Printf("  Policies loaded: %d\n", len(cfg.Policies))
	fmt.Printf("  Assignments loaded: %d\n", len(cfg.Assignments))
}

func loadConfig(filename string) (*authz.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	loader := authz.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
}

func saveConfig(cfg *authz.Config, filename string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
