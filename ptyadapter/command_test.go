package ptyadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretAICommandPlain(t *testing.T) {
	shell, args, cwd := InterpretAICommand("claude", "/home/user")
	assert.Equal(t, "bash", shell)
	assert.Equal(t, []string{"-c", "cd '/home/user' && claude"}, args)
	assert.Equal(t, "/home/user", cwd)
}

func TestInterpretAICommandWorkdirOverride(t *testing.T) {
	shell, args, cwd := InterpretAICommand("claude --workdir /srv/proj --verbose", "/home/user")
	assert.Equal(t, "bash", shell)
	assert.Equal(t, "/srv/proj", cwd)
	assert.Equal(t, []string{"-c", "cd '/srv/proj' && claude --verbose"}, args)
}

func TestInterpretAICommandWorkdirLeavesEmptyCommandFallsBackToClaude(t *testing.T) {
	_, args, cwd := InterpretAICommand("--workdir /srv/proj", "/home/user")
	assert.Equal(t, "/srv/proj", cwd)
	assert.Equal(t, []string{"-c", "cd '/srv/proj' && claude"}, args)
}

func TestInterpretAICommandQuotesCwdWithSpaces(t *testing.T) {
	_, args, _ := InterpretAICommand("claude", "/home/a user/dir")
	assert.Equal(t, []string{"-c", "cd '/home/a user/dir' && claude"}, args)
}

func TestBuildEnvInjectsTermColorterm(t *testing.T) {
	env := BuildEnv([]string{"HOME=/root", "TERM=dumb"})
	assert.Contains(t, env, "HOME=/root")
	assert.Contains(t, env, "TERM=xterm-color")
	assert.Contains(t, env, "COLORTERM=truecolor")
	assert.NotContains(t, env, "TERM=dumb")
}
