package pdf

var (
	FormatarMoeda       = formatarMoeda
	FormatarCompetencia = formatarCompetencia
	AgruparChave        = agruparChave
	QuebrarTexto        = quebrarTexto
)
