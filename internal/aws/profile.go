package aws

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

var (
	credentialsSectionRe = regexp.MustCompile(`^\[([^\]]+)\]$`)
	configSectionRe      = regexp.MustCompile(`^\[(?:profile\s+)?([^\]]+)\]$`)
	regionRe             = regexp.MustCompile(`^\s*region\s*=\s*(.+)$`)
)

// ListProfiles reads AWS profiles from ~/.aws/credentials and ~/.aws/config
func ListProfiles() ([]pkgtypes.AWSProfile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	profileMap := make(map[string]*pkgtypes.AWSProfile)

	// Credentials first, then config merged on top for region info and
	// config-only profiles (SSO profiles, etc.)
	for _, p := range parseProfileFile(filepath.Join(home, ".aws", "credentials"), false) {
		profile := p
		profileMap[p.Name] = &profile
	}
	for _, p := range parseProfileFile(filepath.Join(home, ".aws", "config"), true) {
		if existing, ok := profileMap[p.Name]; ok {
			if existing.Region == "" && p.Region != "" {
				existing.Region = p.Region
			}
			continue
		}
		profile := p
		profileMap[p.Name] = &profile
	}

	var profiles []pkgtypes.AWSProfile
	for _, p := range profileMap {
		profiles = append(profiles, *p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		// Put "default" first, then sort alphabetically
		if profiles[i].Name == "default" {
			return true
		}
		if profiles[j].Name == "default" {
			return false
		}
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// ValidateProfile checks if a profile exists
func ValidateProfile(name string) bool {
	profiles, err := ListProfiles()
	if err != nil {
		return false
	}

	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// parseProfileFile parses one AWS INI-style file. Config files name their
// sections [profile name] except for [default]; credentials files use the
// bare profile name. A missing file yields no profiles.
func parseProfileFile(path string, isConfigFile bool) []pkgtypes.AWSProfile {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	source := "credentials"
	sectionRe := credentialsSectionRe
	if isConfigFile {
		source = "config"
		sectionRe = configSectionRe
	}

	var profiles []pkgtypes.AWSProfile
	var current *pkgtypes.AWSProfile

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if matches := sectionRe.FindStringSubmatch(line); len(matches) == 2 {
			if current != nil {
				profiles = append(profiles, *current)
			}
			current = &pkgtypes.AWSProfile{
				Name:   strings.TrimSpace(matches[1]),
				Source: source,
			}
			continue
		}

		if current != nil {
			if matches := regionRe.FindStringSubmatch(line); len(matches) == 2 {
				current.Region = strings.TrimSpace(matches[1])
			}
		}
	}

	if current != nil {
		profiles = append(profiles, *current)
	}

	return profiles
}
