// Package mediabias labels sources with the editorial leaning of the outlet that published them.
package mediabias

import (
	"math"
	"net/url"
	"strings"
)

type Bias string

const (
	Left    Bias = "LEFT"
	Center  Bias = "CENTER"
	Right   Bias = "RIGHT"
	Unknown Bias = "UNKNOWN"
)

// Outlet is one known publisher.
type Outlet struct {
	Domain string
	Name   string
	Bias   Bias
}

// Outlets is the editorial leaning table. Official and academic hosts count as CENTER.
var Outlets = []Outlet{
	{"brasil247.com", "Brasil 247", Left},
	{"cartacapital.com.br", "Carta Capital", Left},
	{"theintercept.com", "The Intercept Brasil", Left},
	{"brasildefato.com.br", "Brasil de Fato", Left},
	{"jornalggn.com.br", "GGN", Left},
	{"redebrasilatual.com.br", "Rede Brasil Atual", Left},
	{"diariodocentrodomundo.com.br", "DCM", Left},

	{"g1.globo.com", "G1", Center},
	{"globo.com", "Globo", Center},
	{"uol.com.br", "UOL", Center},
	{"folha.uol.com.br", "Folha de S.Paulo", Center},
	{"estadao.com.br", "Estadão", Center},
	{"bbc.com", "BBC Brasil", Center},
	{"bbc.co.uk", "BBC", Center},
	{"oglobo.globo.com", "O Globo", Center},
	{"cnnbrasil.com.br", "CNN Brasil", Center},
	{"valor.globo.com", "Valor Econômico", Center},
	{"exame.com", "Exame", Center},
	{"band.uol.com.br", "Band", Center},
	{"sbt.com.br", "SBT", Center},
	{"r7.com", "R7", Center},
	{"ig.com.br", "iG", Center},
	{"terra.com.br", "Terra", Center},
	{"poder360.com.br", "Poder360", Center},
	{"metropoles.com", "Metrópoles", Center},
	{"nexojornal.com.br", "Nexo", Center},
	{"agenciabrasil.ebc.com.br", "Agência Brasil", Center},

	{"gazetadopovo.com.br", "Gazeta do Povo", Right},
	{"jovempan.com.br", "Jovem Pan", Right},
	{"veja.abril.com.br", "Veja", Right},
	{"revistaoeste.com", "Revista Oeste", Right},
	{"conexaopolitica.com.br", "Conexão Política", Right},
	{"oantagonista.com", "O Antagonista", Right},
	{"tercalivre.com.br", "Terça Livre", Right},

	{"ibge.gov.br", "IBGE", Center},
	{"ipea.gov.br", "IPEA", Center},
	{"planalto.gov.br", "Planalto", Center},
	{"senado.leg.br", "Senado Federal", Center},
	{"camara.leg.br", "Câmara dos Deputados", Center},
	{"stf.jus.br", "STF", Center},
	{"tse.jus.br", "TSE", Center},
}

var officialSuffixes = []string{".gov.br", ".edu.br", ".leg.br", ".jus.br", ".mil.br"}

// Classify looks the source up by host first (longest matching domain wins), then by
// official suffix, then by outlet name.
func Classify(rawURL, name string) Bias {
	if host := hostOf(rawURL); host != "" {
		best := -1
		for i, o := range Outlets {
			if host == o.Domain || strings.HasSuffix(host, "."+o.Domain) {
				if best < 0 || len(o.Domain) > len(Outlets[best].Domain) {
					best = i
				}
			}
		}
		if best >= 0 {
			return Outlets[best].Bias
		}
		for _, suffix := range officialSuffixes {
			if strings.HasSuffix(host, suffix) {
				return Center
			}
		}
	}

	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) < 2 {
		return Unknown
	}
	for _, o := range Outlets {
		on := strings.ToLower(o.Name)
		if n == on || strings.Contains(n, on) && len(on) > 3 {
			return o.Bias
		}
	}
	return Unknown
}

func hostOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Distribution is the rounded share of each leaning across a source list.
type Distribution struct {
	Left    int `json:"left"`
	Center  int `json:"center"`
	Right   int `json:"right"`
	Unknown int `json:"unknown"`
}

func Distribute(biases []Bias) Distribution {
	if len(biases) == 0 {
		return Distribution{}
	}
	var left, center, right, unknown int
	for _, b := range biases {
		switch b {
		case Left:
			left++
		case Center:
			center++
		case Right:
			right++
		default:
			unknown++
		}
	}
	total := float64(len(biases))
	pct := func(n int) int { return int(math.Round(float64(n) / total * 100)) }
	return Distribution{Left: pct(left), Center: pct(center), Right: pct(right), Unknown: pct(unknown)}
}
