package integration

import (
	"strings"
	"text/template"

	"al.essio.dev/pkg/shellescape"
)

// rcData is the input of the rc templates.
type rcData struct {
	OrigZdotdir    string
	IntegrationDir string
}

var funcs = template.FuncMap{"quote": shellescape.Quote}

// zshenv restores the user's ZDOTDIR, sources their .zshenv, then points
// ZDOTDIR back here so zsh picks up our .zshrc next.
var zshenvTmpl = template.Must(template.New(".zshenv").Funcs(funcs).Parse(`# terminal-division shell integration
__TD_ORIG_ZDOTDIR={{quote .OrigZdotdir}}
ZDOTDIR={{quote .OrigZdotdir}}
[[ -f "${ZDOTDIR}/.zshenv" ]] && source "${ZDOTDIR}/.zshenv"
ZDOTDIR={{quote .IntegrationDir}}
`))

// zshrc emits OSC 7770 D;<exit> (only after a command ran), OSC 7 and
// OSC 7770 A before every prompt. The gray dot is recolored by the
// renderer, never by reissuing the prompt.
var zshrcTmpl = template.Must(template.New(".zshrc").Funcs(funcs).Parse(`# terminal-division shell integration
ZDOTDIR={{quote .OrigZdotdir}}
[[ -f "${ZDOTDIR}/.zshrc" ]] && source "${ZDOTDIR}/.zshrc"

__td_last_exit=0
__td_has_run_command=0

__td_precmd() {
  __td_last_exit=$?
  if [[ $__td_has_run_command -eq 1 ]]; then
    printf '\e]7770;D;%d\a' "$__td_last_exit"
    __td_has_run_command=0
  fi
  printf '\e]7;file://%s%s\a' "${HOST}" "${PWD}"
  printf '\e]7770;A\a'
  return $__td_last_exit
}

# preexec does not fire for an empty Enter.
__td_preexec() {
  __td_has_run_command=1
}

# Runs last so prompt frameworks have already rebuilt PROMPT.
__td_prompt_status() {
  PROMPT="${PROMPT#%F\{242\}● %f}"
  PROMPT="%F{242}● %f${PROMPT}"
}

precmd_functions=(__td_precmd "${precmd_functions[@]}")
precmd_functions+=(__td_prompt_status)
preexec_functions=(__td_preexec "${preexec_functions[@]}")
`))

// bashrc has no preexec, so D is sent for every prompt but the first.
var bashrcTmpl = template.Must(template.New(".bashrc").Funcs(funcs).Parse(`# terminal-division shell integration
[[ -f "$HOME/.bashrc" ]] && source "$HOME/.bashrc"

__td_first_prompt=1

__td_prompt_command() {
  local e=$?
  local gray_dot='\[\033[38;5;242m\]● \[\033[0m\]'

  if [[ "$PS1" == "$gray_dot"* ]]; then
    PS1="${PS1#"$gray_dot"}"
  fi

  if [[ $__td_first_prompt -eq 1 ]]; then
    __td_first_prompt=0
  else
    printf '\e]7770;D;%d\a' "$e"
  fi

  printf '\e]7;file://%s%s\a' "$(hostname)" "$PWD"
  printf '\e]7770;A\a'
  PS1="${gray_dot}${PS1}"
}

PROMPT_COMMAND="__td_prompt_command"
`))

func render(t *template.Template, data rcData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
