package perdcomp

import "strings"

// Motivo is the normalized processing outcome of a document's situation text.
type Motivo string

const (
	MotivoRecepcionado       Motivo = "Recepcionado"
	MotivoDeferido           Motivo = "Deferido"
	MotivoIndeferido         Motivo = "Indeferido"
	MotivoCancelado          Motivo = "Cancelado"
	MotivoCancelamentoNegado Motivo = "Cancelamento negado"
	MotivoHomologado         Motivo = "Homologado"
	MotivoDesconhecido       Motivo = "Outro/Desconhecido"
)

// Motivos lists every normalized outcome in stable reporting order.
var Motivos = []Motivo{
	MotivoRecepcionado,
	MotivoDeferido,
	MotivoIndeferido,
	MotivoCancelado,
	MotivoCancelamentoNegado,
	MotivoHomologado,
	MotivoDesconhecido,
}

var diacriticFold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func foldText(value string) string {
	return diacriticFold.Replace(strings.ToLower(value))
}

// NormalizaMotivo maps free-text situation and detail fields onto a
// normalized outcome. Matching is diacritic-insensitive substring matching
// against the provider's known phrasings; anything unmatched is
// Outro/Desconhecido.
func NormalizaMotivo(situacao, detalhe string) Motivo {
	s := foldText(situacao)
	d := foldText(detalhe)

	switch {
	case strings.Contains(s, "recepcionado em procedimento de analise"):
		return MotivoRecepcionado
	case strings.Contains(s, "analise concluida com direito creditorio reconhecido"):
		return MotivoDeferido
	case strings.Contains(s, "analise concluida com indeferimento"):
		return MotivoIndeferido
	case strings.Contains(s, "pedido de cancelamento deferido"):
		return MotivoCancelado
	case strings.Contains(s, "pedido de cancelamento indeferido") || strings.Contains(d, "indeferido"):
		return MotivoCancelamentoNegado
	case strings.Contains(s, "homologado") || strings.Contains(s, "credito utilizado") || strings.Contains(d, "homologado"):
		return MotivoHomologado
	}
	return MotivoDesconhecido
}
